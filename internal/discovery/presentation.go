package discovery

// NoNameCaption is shown for devices that did not advertise a name.
const NoNameCaption = "(no name)"

// Caption returns the display name for rec, falling back to NoNameCaption.
func Caption(rec DeviceRecord) string {
	if rec.HasName() {
		return *rec.Name
	}
	return NoNameCaption
}

// BondMarker returns "*" for bonded devices and a single space otherwise,
// so titles line up in a fixed-width list.
func BondMarker(rec DeviceRecord) string {
	if rec.Bonded {
		return "*"
	}
	return " "
}

// Title is the first line of a list row: caption, a space, then the bond marker.
func Title(rec DeviceRecord) string {
	return Caption(rec) + " " + BondMarker(rec)
}

// Row is the view model for one list entry.
type Row struct {
	Title   string `json:"title"`
	Address string `json:"address"`
	Caption string `json:"caption"`
	Bonded  bool   `json:"bonded"`
}

// RowFor builds the list row for rec.
func RowFor(rec DeviceRecord) Row {
	return Row{
		Title:   Title(rec),
		Address: rec.Address,
		Caption: Caption(rec),
		Bonded:  rec.Bonded,
	}
}

// Rows builds list rows in registry order.
func Rows(records []DeviceRecord) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = RowFor(rec)
	}
	return rows
}

// Menu describes which actions are offered.
type Menu struct {
	Scan  bool `json:"scan"`
	Stop  bool `json:"stop"`
	About bool `json:"about"`
}

// MenuFor derives action visibility. Scan and Stop are hidden entirely until
// every required capability is granted; About is always offered.
func MenuFor(permissionsGranted bool, state State) Menu {
	return Menu{
		Scan:  permissionsGranted && state == StateIdle,
		Stop:  permissionsGranted && state == StateScanning,
		About: true,
	}
}
