// Package permission decides whether the capabilities a scan needs are held,
// and asks the platform for the ones that are not.
//
// The Gate is the single entry point:
//
//	caps := permission.DefaultPolicy().Required(apiLevel)
//	res := <-gate.CheckAndRequest(ctx, caps)
//	if !res.Granted() {
//	    // one notice per res.Missing entry
//	}
//
// Inspection is synchronous. Requesting is asynchronous: the platform may
// put a prompt in front of the user. Identical requests made while one is
// outstanding share its answer, and grants are remembered for the lifetime
// of the Gate so a satisfied capability is never requested again.
//
// Denials are not remembered; asking again re-prompts.
package permission
