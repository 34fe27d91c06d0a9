package eocustom

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// birthDateLayout accepts one- or two-digit months and days.
const birthDateLayout = "1/2/2006"

// CustomFields holds the supplementary member attributes. Every field is an
// empty string when the lookup fails, never absent.
type CustomFields struct {
	Region   string `json:"region"`
	Country  string `json:"country"`
	Gender   string `json:"gender"`
	Birthday string `json:"birthday"`
}

// Identity is the normalized identity produced by a successful handshake.
type Identity struct {
	UID          string       `json:"uid"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Email        string       `json:"email"`
	Username     string       `json:"username"`
	MemberID     string       `json:"member_id"`
	CustomFields CustomFields `json:"custom_fields_data"`
}

// UserInfo returns the summary recorded on the audit event.
func (i *Identity) UserInfo() UserInfo {
	return UserInfo{
		UID:       i.UID,
		FirstName: i.FirstName,
		LastName:  i.LastName,
		Email:     i.Email,
	}
}

// Assemble maps a member profile and its custom fields onto an Identity.
// uid is the member identifier captured by the token exchange; it also
// stands in for the profile's MemberId when the lookup omitted it.
func Assemble(uid string, profile *MemberProfile, fields CustomFields) *Identity {
	memberID := profile.MemberID
	if memberID == "" {
		memberID = uid
	}
	return &Identity{
		UID:          uid,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Email:        profile.Email,
		Username:     profile.Nickname,
		MemberID:     memberID,
		CustomFields: fields,
	}
}

// FormatBirthday reduces an MM/DD/YYYY birth date to its four-digit year.
// Empty and unparseable values yield an empty string.
func FormatBirthday(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	t, err := time.Parse(birthDateLayout, fields[0])
	if err != nil {
		return ""
	}
	return strconv.Itoa(t.Year())
}

// fetchCustomFields runs the password grant and the custom field lookup.
// A failed password grant is returned as an error; a failed lookup degrades
// to blank fields.
func (c *apiClient) fetchCustomFields(ctx context.Context, event AuditEvent, memberID string) (CustomFields, error) {
	accessToken, err := c.passwordGrant(ctx, event)
	if err != nil {
		return CustomFields{}, err
	}

	record, err := c.customFields(ctx, event, accessToken, memberID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return CustomFields{}, ctxErr
		}
		return CustomFields{}, nil
	}

	return CustomFields{
		Region:   record.RegionName,
		Country:  record.BusinessCountry,
		Gender:   record.Gender,
		Birthday: FormatBirthday(record.BirthDate),
	}, nil
}
