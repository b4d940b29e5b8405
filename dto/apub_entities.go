package dto

import (
	"encoding/json"
	"fmt"
)

// UserInfo is an actor document, ours or a remote one.
type UserInfo struct {
	Context           any           `json:"@context"`
	Id                string        `json:"id"`
	Type              string        `json:"type"`
	PreferredUserName string        `json:"preferredUsername"`
	Name              string        `json:"name"`
	Summary           string        `json:"summary"`
	ManuallyApproves  bool          `json:"manuallyApprovesFollowers"`
	Published         string        `json:"published,omitempty"`
	Inbox             string        `json:"inbox"`
	Outbox            string        `json:"outbox"`
	Followers         string        `json:"followers"`
	Following         string        `json:"following"`
	Endpoints         UserEndpoints `json:"endpoints"`
	PublicKey         PublicKey     `json:"publicKey"`
	Attachments       []Attachment  `json:"attachment"`
}

type Attachment struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type UserEndpoints struct {
	SharedInbox string `json:"sharedInbox"`
}

type PublicKey struct {
	Id           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

type OrderedListSummary struct {
	Context    any     `json:"@context"`
	Id         string  `json:"id"`
	Type       string  `json:"type"`
	TotalItems uint    `json:"totalItems"`
	First      *string `json:"first,omitempty"`
	Last       *string `json:"last,omitempty"`
}

func getRecipient(raw any) ([]string, error) {
	var res []string
	if raw == nil {
		return res, nil
	}
	if slice, ok := raw.([]interface{}); ok {
		for _, s := range slice {
			if str, ok := s.(string); ok {
				res = append(res, str)
			} else {
				return res, fmt.Errorf("list of recipients must only contain strings")
			}
		}
	} else if str, ok := raw.(string); ok {
		res = []string{str}
	} else {
		return res, fmt.Errorf("to and cc must be single string or array of strings")
	}
	return res, nil
}

// ActivityInBase is the rudimentary shape of any received activity:
// enough to learn its type and actor before dispatching.
type ActivityInBase struct {
	Id     string   `json:"id"`
	Type   string   `json:"type"`
	Actor  string   `json:"actor"`
	To     []string `json:"-"`
	RawTo  any      `json:"to"`
	Cc     []string `json:"-"`
	RawCc  any      `json:"cc"`
	Object any      `json:"object"`
}

func (x *ActivityInBase) UnmarshalJSON(data []byte) error {
	var err error
	type Y ActivityInBase
	var y = (*Y)(x)
	if err = json.Unmarshal(data, y); err != nil {
		return err
	}
	if y.To, err = getRecipient(y.RawTo); err != nil {
		return err
	}
	if y.Cc, err = getRecipient(y.RawCc); err != nil {
		return err
	}
	return nil
}

// ActivityIn is a received activity whose object has a known shape.
// T is string for Follow, ActivityIn[string] for Undo(Follow), etc.
type ActivityIn[T any] struct {
	Id     string   `json:"id"`
	Type   string   `json:"type"`
	Actor  string   `json:"actor"`
	To     []string `json:"-"`
	RawTo  any      `json:"to"`
	Cc     []string `json:"-"`
	RawCc  any      `json:"cc"`
	Object T        `json:"object"`
}

func (x *ActivityIn[T]) UnmarshalJSON(data []byte) error {
	var err error
	type Y ActivityIn[T]
	var y = (*Y)(x)
	if err = json.Unmarshal(data, y); err != nil {
		return err
	}
	if y.To, err = getRecipient(y.RawTo); err != nil {
		return err
	}
	if y.Cc, err = getRecipient(y.RawCc); err != nil {
		return err
	}
	return nil
}

// ActivityOut is an activity we send: Create wrapping a Note, or Accept
// wrapping the original Follow.
type ActivityOut struct {
	Context any       `json:"@context,omitempty"`
	Id      string    `json:"id"`
	Type    string    `json:"type"`
	Actor   string    `json:"actor"`
	To      *[]string `json:"to,omitempty"`
	Cc      *[]string `json:"cc,omitempty"`
	Object  any       `json:"object,omitempty"`
}

// Note is an outbound post. Immutable once built.
type Note struct {
	Context      string   `json:"@context,omitempty"`
	Id           string   `json:"id"`
	Type         string   `json:"type"`
	Url          string   `json:"url"`
	Published    string   `json:"published"`
	Summary      *string  `json:"summary"`
	Sensitive    bool     `json:"sensitive,omitempty"`
	AttributedTo string   `json:"attributedTo"`
	To           []string `json:"to"`
	Cc           []string `json:"cc"`
	Content      string   `json:"content"`
	Tag          []Tag    `json:"tag,omitempty"`
}

type Tag struct {
	Type string `json:"type"`
	Href string `json:"href"`
	Name string `json:"name"`
}
