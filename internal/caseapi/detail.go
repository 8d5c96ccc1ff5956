// Package caseapi provides the TAC Case API client and the normalized
// read view over case data. Two upstream JSON shapes are observed in
// the wild: a legacy nested RESPONSE.CASES.CASE_DETAIL envelope and a
// flatter caseDetail document. Both parse into one CaseDetail.
package caseapi

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	domerrors "github.com/imapex/tacbot-go/internal/errors"
)

// timeLayout is the timestamp format used by the Case API.
const timeLayout = "2006-01-02T15:04:05Z"

// notePlaceholder is the summary value the API emits when the real
// content lives in the note detail field.
const notePlaceholder = "Please refer to the note detail"

var actionPlanRe = regexp.MustCompile(`(?i)action\s+plan`)

// Party identifies the case owner (TAC CSE).
type Party struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// Contact identifies the customer contact on the case.
type Contact struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	BusinessPhone string
	MobilePhone   string
}

// Note is a free-text case annotation.
type Note struct {
	Author  string
	Summary string
	Detail  string
	Created string
	Updated string
}

// Text returns the note content, substituting the detail field when
// the summary holds the upstream placeholder.
func (n *Note) Text() string {
	if n.Summary == notePlaceholder {
		return n.Detail
	}
	return n.Summary
}

// CreatedTime parses the note creation timestamp.
func (n *Note) CreatedTime() (time.Time, error) {
	return time.Parse(timeLayout, n.Created)
}

// CaseDetail is the immutable read view over one fetched case
// document. Absent upstream fields are zero values; only "not found"
// and upstream failures are surfaced as errors, by the client.
type CaseDetail struct {
	CaseNumber   string
	Title        string
	Description  string
	SerialNumber string
	ContractID   string
	Status       string
	Severity     string
	Created      string
	Updated      string
	Owner        Party
	Customer     Contact
	RMAs         []string
	Bugs         []string
	Notes        []Note
}

// IsClosed reports whether the case status marks it closed.
func (d *CaseDetail) IsClosed() bool {
	return strings.Contains(d.Status, "Closed")
}

// CreatedTime parses the case creation timestamp.
func (d *CaseDetail) CreatedTime() (time.Time, error) {
	return time.Parse(timeLayout, d.Created)
}

// UpdatedTime parses the last-update timestamp.
func (d *CaseDetail) UpdatedTime() (time.Time, error) {
	return time.Parse(timeLayout, d.Updated)
}

// LastNote returns the note with the maximum creation date, or nil
// when the case has no notes.
func (d *CaseDetail) LastNote() *Note {
	return d.latestNote(func(*Note) bool { return true })
}

// ActionPlan returns the latest note whose summary or detail mentions
// an action plan, or nil when none matches.
func (d *CaseDetail) ActionPlan() *Note {
	return d.latestNote(func(n *Note) bool {
		return actionPlanRe.MatchString(n.Summary) || actionPlanRe.MatchString(n.Detail)
	})
}

func (d *CaseDetail) latestNote(match func(*Note) bool) *Note {
	var latest *Note
	var latestAt time.Time
	for i := range d.Notes {
		n := &d.Notes[i]
		if !match(n) {
			continue
		}
		at, err := n.CreatedTime()
		if err != nil {
			continue
		}
		if latest == nil || at.After(latestAt) {
			latest = n
			latestAt = at
		}
	}
	return latest
}

// idList accepts the three upstream spellings of an id collection:
// absent/null, a single scalar, or a list.
type idList []string

func (l *idList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*l = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = []string{single}
	return nil
}

// idWrapper is the legacy {"ID": <scalar|list>} envelope.
type idWrapper struct {
	ID idList `json:"ID"`
}

// legacyNote mirrors one CASE_NOTES entry in the legacy shape.
type legacyNote struct {
	CreatedBy    string `json:"CREATED_BY"`
	Note         string `json:"NOTE"`
	NoteDetail   string `json:"NOTE_DETAIL"`
	CreationDate string `json:"CREATION_DATE"`
	UpdatedDate  string `json:"UPDATED_DATE"`
}

// legacyDetail mirrors RESPONSE.CASES.CASE_DETAIL.
type legacyDetail struct {
	ID                 string     `json:"ID"`
	Title              string     `json:"TITLE"`
	ProblemDesc        string     `json:"PROBLEM_DESC"`
	SerialNumber       string     `json:"SERIAL_NUMBER"`
	ContractID         string     `json:"CONTRACT_ID"`
	Status             string     `json:"STATUS"`
	Severity           string     `json:"SEVERITY"`
	CreationDate       string     `json:"CREATION_DATE"`
	UpdatedDate        string     `json:"UPDATED_DATE"`
	RMAs               *idWrapper `json:"RMAS"`
	Bugs               *idWrapper `json:"BUGS"`
	OwnerUserID        string     `json:"OWNER_USER_ID"`
	OwnerFirstName     string     `json:"OWNER_FIRST_NAME"`
	OwnerLastName      string     `json:"OWNER_LAST_NAME"`
	OwnerEmail         string     `json:"OWNER_EMAIL_ADDRESS"`
	ContactUserID      string     `json:"CONTACT_USER_ID"`
	ContactFirstName   string     `json:"CONTACT_FIRST_NAME"`
	ContactLastName    string     `json:"CONTACT_LAST_NAME"`
	ContactEmail       string     `json:"CONTACT_EMAIL_ADDRESS"`
	ContactBusiness    string     `json:"CONTACT_BUSINESS_PHONE_NUMBER"`
	ContactMobile      string     `json:"CONTACT_MOBILE_PHONE_NUMBER"`
	Notes              struct {
		Details []legacyNote `json:"CASE_NOTE_DETAIL"`
	} `json:"CASE_NOTES"`
}

// legacyEnvelope mirrors the legacy top-level RESPONSE shape.
type legacyEnvelope struct {
	Response struct {
		Count int `json:"COUNT"`
		Cases struct {
			CaseDetail legacyDetail `json:"CASE_DETAIL"`
		} `json:"CASES"`
	} `json:"RESPONSE"`
}

// flatNote mirrors one note entry in the flatter v3 shape.
type flatNote struct {
	CreatedBy   string `json:"createdBy"`
	Note        string `json:"note"`
	NoteDetail  string `json:"noteDetail"`
	CreatedDate string `json:"createdDate"`
	UpdatedDate string `json:"updatedDate"`
}

// flatDetail mirrors the flatter caseDetail document.
type flatDetail struct {
	CaseID             string     `json:"caseId"`
	Title              string     `json:"title"`
	ProblemDescription string     `json:"problemDescription"`
	SerialNumber       string     `json:"serialNumber"`
	ContractID         string     `json:"contractId"`
	Status             string     `json:"status"`
	Severity           string     `json:"severity"`
	CreatedDate        string     `json:"createdDate"`
	UpdatedDate        string     `json:"updatedDate"`
	RMANumbers         idList     `json:"rmaNumber"`
	BugIDs             idList     `json:"bugId"`
	OwnerUserID        string     `json:"ownerUserId"`
	OwnerFirstName     string     `json:"ownerFirstName"`
	OwnerLastName      string     `json:"ownerLastName"`
	OwnerEmail         string     `json:"ownerEmailAddress"`
	ContactUserID      string     `json:"contactUserId"`
	ContactFirstName   string     `json:"contactFirstName"`
	ContactLastName    string     `json:"contactLastName"`
	ContactEmail       string     `json:"contactEmailAddress"`
	ContactBusiness    string     `json:"contactBusinessPhone"`
	ContactMobile      string     `json:"contactMobilePhone"`
	Notes              []flatNote `json:"caseNotes"`
}

// parseCaseDetail normalizes either upstream shape into a CaseDetail.
// The presence of a top-level RESPONSE key selects the legacy parse.
// Zero matching cases map to ErrCaseNotFound.
func parseCaseDetail(caseNumber string, data []byte) (*CaseDetail, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse case response: %w", err)
	}

	if _, ok := probe["RESPONSE"]; ok {
		return parseLegacy(caseNumber, data)
	}
	return parseFlat(caseNumber, data)
}

func parseLegacy(caseNumber string, data []byte) (*CaseDetail, error) {
	var env legacyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse legacy case response: %w", err)
	}
	if env.Response.Count == 0 {
		return nil, domerrors.ErrCaseNotFound
	}

	src := env.Response.Cases.CaseDetail
	detail := &CaseDetail{
		CaseNumber:   caseNumber,
		Title:        src.Title,
		Description:  src.ProblemDesc,
		SerialNumber: src.SerialNumber,
		ContractID:   src.ContractID,
		Status:       src.Status,
		Severity:     src.Severity,
		Created:      src.CreationDate,
		Updated:      src.UpdatedDate,
		Owner: Party{
			ID:        src.OwnerUserID,
			FirstName: src.OwnerFirstName,
			LastName:  src.OwnerLastName,
			Email:     src.OwnerEmail,
		},
		Customer: Contact{
			ID:            src.ContactUserID,
			FirstName:     src.ContactFirstName,
			LastName:      src.ContactLastName,
			Email:         src.ContactEmail,
			BusinessPhone: src.ContactBusiness,
			MobilePhone:   src.ContactMobile,
		},
	}
	if src.RMAs != nil {
		detail.RMAs = src.RMAs.ID
	}
	if src.Bugs != nil {
		detail.Bugs = src.Bugs.ID
	}
	for _, n := range src.Notes.Details {
		detail.Notes = append(detail.Notes, Note{
			Author:  n.CreatedBy,
			Summary: n.Note,
			Detail:  n.NoteDetail,
			Created: n.CreationDate,
			Updated: n.UpdatedDate,
		})
	}
	return detail, nil
}

func parseFlat(caseNumber string, data []byte) (*CaseDetail, error) {
	var env struct {
		CaseDetail *flatDetail `json:"caseDetail"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse case response: %w", err)
	}
	if env.CaseDetail == nil {
		return nil, domerrors.ErrCaseNotFound
	}

	src := env.CaseDetail
	detail := &CaseDetail{
		CaseNumber:   caseNumber,
		Title:        src.Title,
		Description:  src.ProblemDescription,
		SerialNumber: src.SerialNumber,
		ContractID:   src.ContractID,
		Status:       src.Status,
		Severity:     src.Severity,
		Created:      src.CreatedDate,
		Updated:      src.UpdatedDate,
		Owner: Party{
			ID:        src.OwnerUserID,
			FirstName: src.OwnerFirstName,
			LastName:  src.OwnerLastName,
			Email:     src.OwnerEmail,
		},
		Customer: Contact{
			ID:            src.ContactUserID,
			FirstName:     src.ContactFirstName,
			LastName:      src.ContactLastName,
			Email:         src.ContactEmail,
			BusinessPhone: src.ContactBusiness,
			MobilePhone:   src.ContactMobile,
		},
		RMAs: src.RMANumbers,
		Bugs: src.BugIDs,
	}
	for _, n := range src.Notes {
		detail.Notes = append(detail.Notes, Note{
			Author:  n.CreatedBy,
			Summary: n.Note,
			Detail:  n.NoteDetail,
			Created: n.CreatedDate,
			Updated: n.UpdatedDate,
		})
	}
	return detail, nil
}
