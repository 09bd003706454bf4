package ptp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt decodes numbers the tracker sends either as JSON numbers or as
// quoted strings. Empty strings and null decode to zero.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		n = int64(fl)
	}
	*f = FlexInt(n)
	return nil
}

// FlexString decodes identifiers the tracker sends either as strings or
// as numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Director is a movie director. Older responses list plain names.
type Director struct {
	Name string     `json:"Name"`
	ID   FlexString `json:"Id"`
}

func (d *Director) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &d.Name)
	}
	type plain Director
	return json.Unmarshal(data, (*plain)(d))
}

// Torrent represents a single torrent of a movie group
type Torrent struct {
	ID            FlexString `json:"Id"`
	GroupID       FlexString `json:"GroupId"`
	ReleaseName   string     `json:"ReleaseName"`
	Quality       string     `json:"Quality"`
	Size          FlexInt    `json:"Size"`
	Codec         string     `json:"Codec"`
	Container     string     `json:"Container"`
	Source        string     `json:"Source"`
	Resolution    string     `json:"Resolution"`
	RemasterTitle string     `json:"RemasterTitle"`
	Seeders       FlexInt    `json:"Seeders"`
	Leechers      FlexInt    `json:"Leechers"`
	Snatched      FlexInt    `json:"Snatched"`
	UploadTime    string     `json:"UploadTime"`
	Description   string     `json:"BBCodeDescription"`
	Checked       bool       `json:"Checked"`
	GoldenPopcorn bool       `json:"GoldenPopcorn"`
	Scene         bool       `json:"Scene"`
	ReleaseGroup  string     `json:"ReleaseGroup"`
	InfoHash      string     `json:"InfoHash"`
	FreeleechType string     `json:"FreeleechType"`
}

// Movie represents a movie group and its torrents
type Movie struct {
	GroupID        FlexString `json:"GroupId"`
	ID             FlexString `json:"Id"`
	Title          string     `json:"Title"`
	Name           string     `json:"Name"`
	Year           FlexString `json:"Year"`
	Cover          string     `json:"Cover"`
	Tags           []string   `json:"Tags"`
	Directors      []Director `json:"Directors"`
	ImdbID         FlexString `json:"ImdbId"`
	Type           string     `json:"Type"`
	TotalSeeders   FlexInt    `json:"TotalSeeders"`
	TotalLeechers  FlexInt    `json:"TotalLeechers"`
	TotalSnatched  FlexInt    `json:"TotalSnatched"`
	MaxSize        FlexInt    `json:"MaxSize"`
	LastUploadTime string     `json:"LastUploadTime"`
	Torrents       []Torrent  `json:"Torrents"`
}

// MovieID returns the group id, which single-movie responses call Id.
func (m *Movie) MovieID() string {
	if m.GroupID != "" {
		return string(m.GroupID)
	}
	return string(m.ID)
}

// DisplayTitle returns Title, falling back to Name.
func (m *Movie) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}

// Kind returns Type, defaulting to "Movie".
func (m *Movie) Kind() string {
	if m.Type == "" {
		return "Movie"
	}
	return m.Type
}

// Profile narrows BestMatch. Empty fields match anything.
type Profile struct {
	Codec      string
	Container  string
	Source     string
	Resolution string
}

// BestMatch returns the first torrent matching every non-empty profile
// field, or nil.
func (m *Movie) BestMatch(p Profile) *Torrent {
	for i := range m.Torrents {
		t := &m.Torrents[i]
		if (p.Codec == "" || t.Codec == p.Codec) &&
			(p.Container == "" || t.Container == p.Container) &&
			(p.Source == "" || t.Source == p.Source) &&
			(p.Resolution == "" || t.Resolution == p.Resolution) {
			return t
		}
	}
	return nil
}

// SearchResponse is the listing shape shared by search, collages, artists,
// bookmarks and need-for-seed.
type SearchResponse struct {
	TotalResults FlexInt `json:"TotalResults"`
	Page         FlexInt `json:"Page"`
	MaxPages     FlexInt `json:"MaxPages"`
	Movies       []Movie `json:"Movies"`
}

// User represents a tracker user profile
type User struct {
	ID            FlexString `json:"Id"`
	Username      string     `json:"Username"`
	Avatar        string     `json:"Avatar"`
	ProfileText   string     `json:"ProfileText"`
	JoinDate      string     `json:"JoinDate"`
	Uploaded      FlexString `json:"Uploaded"`
	Downloaded    FlexString `json:"Downloaded"`
	Ratio         FlexString `json:"Ratio"`
	RequiredRatio FlexString `json:"RequiredRatio"`

	// Inbox is set only for the account the client is logged in as.
	Inbox *Inbox `json:"-"`
}

// Message is an inbox entry
type Message struct {
	ID           FlexString `json:"Id"`
	Subject      string     `json:"Subject"`
	SenderID     FlexString `json:"SenderId"`
	SenderName   string     `json:"SenderName"`
	ReceiverID   FlexString `json:"ReceiverId"`
	ReceiverName string     `json:"ReceiverName"`
	Sent         string     `json:"Sent"`
	Read         bool       `json:"Read"`
	Body         string     `json:"Body"`
}

// Conversation is a message thread
type Conversation struct {
	ID       FlexString `json:"Id"`
	Subject  string     `json:"Subject"`
	Messages []Message  `json:"Messages"`
}

// Request is an open request from requests.php
type Request struct {
	ID          FlexString `json:"Id"`
	Title       string     `json:"Title"`
	Year        FlexString `json:"Year"`
	ImdbID      FlexString `json:"ImdbId"`
	Bounty      FlexInt    `json:"Bounty"`
	Votes       FlexInt    `json:"Votes"`
	RequestedBy string     `json:"RequestedBy"`
	Filled      bool       `json:"Filled"`
}
