package models

import "strings"

// Column positions of an invite row in the sheet (A..K).
const (
	ColName = iota
	ColCountryCode
	ColPhone
	ColFlagD
	ColFlagE
	ColImage
	ColTable
	ColCheckedIn
	ColDateAdded
	ColCheckInTime
	ColUniqueID

	RowWidth
)

const (
	cellTrue  = "TRUE"
	cellFalse = "FALSE"

	// DateLayout is the format of DateAdded.
	DateLayout = "2006-01-02"
)

// Invite represents one guest row of the remote sheet
type Invite struct {
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
	Phone       string `json:"phone"`

	// FlagD and FlagE mirror columns D and E. Their meaning is not part of the
	// sheet contract; they are written TRUE on creation and carried unchanged.
	FlagD bool `json:"flagD"`
	FlagE bool `json:"flagE"`

	InvitationImagePath string `json:"invitationImagePath"`
	TableNumber         string `json:"tableNumber"`
	CheckedIn           bool   `json:"checkedIn"`
	DateAdded           string `json:"dateAdded"`
	CheckInTime         string `json:"checkInTime,omitempty"`
	UniqueID            string `json:"uniqueId"`

	// Position is the zero-based row index the invite was read from.
	Position int `json:"-"`
}

// InviteFromRow decodes a sheet row. Missing trailing cells decode as empty values.
func InviteFromRow(row []string, position int) Invite {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	return Invite{
		Name:                cell(ColName),
		CountryCode:         cell(ColCountryCode),
		Phone:               cell(ColPhone),
		FlagD:               parseBool(cell(ColFlagD)),
		FlagE:               parseBool(cell(ColFlagE)),
		InvitationImagePath: cell(ColImage),
		TableNumber:         cell(ColTable),
		CheckedIn:           parseBool(cell(ColCheckedIn)),
		DateAdded:           cell(ColDateAdded),
		CheckInTime:         cell(ColCheckInTime),
		UniqueID:            cell(ColUniqueID),
		Position:            position,
	}
}

// Row encodes the invite in sheet column order
func (i Invite) Row() []string {
	row := make([]string, RowWidth)
	row[ColName] = i.Name
	row[ColCountryCode] = i.CountryCode
	row[ColPhone] = i.Phone
	row[ColFlagD] = formatBool(i.FlagD)
	row[ColFlagE] = formatBool(i.FlagE)
	row[ColImage] = i.InvitationImagePath
	row[ColTable] = i.TableNumber
	row[ColCheckedIn] = formatBool(i.CheckedIn)
	row[ColDateAdded] = i.DateAdded
	row[ColCheckInTime] = i.CheckInTime
	row[ColUniqueID] = i.UniqueID
	return row
}

func parseBool(v string) bool {
	return strings.EqualFold(v, cellTrue)
}

func formatBool(b bool) string {
	if b {
		return cellTrue
	}
	return cellFalse
}
