// Package session hosts one discovery screen: it sequences the lifecycle,
// runs the radio-enable and permission preconditions, and turns controller
// notifications into Updates for the presentation surfaces.
//
// # Architecture
//
//	  TUI / API / MQTT commands            radio.Events()
//	            │                                │
//	            ▼                                ▼
//	   ┌────────────────────────────────────────────────┐
//	   │                Loop (one goroutine)            │
//	   │   discovery.Controller  ·  discovery.Registry  │
//	   └────────────────────────────────────────────────┘
//	            │                    ▲
//	   Subscribe() Updates     permission.Gate / RequestEnable
//	   (non-blocking fan-out)  results posted back
//
// Every touch of the controller happens on the Loop goroutine. Blocking work
// (enable prompts, permission prompts, store I/O issued by callers) runs
// elsewhere and posts its outcome back to the loop.
//
// # Lifecycle
//
//	Create → Resume ⇄ Pause → Suspend | Finish
//
// Create restores any snapshot left by Suspend; Finish deletes it.
package session
