package crosslist

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"time"
)

// fakePlatform is a minimal in-memory platform variant. Tests reuse the
// package-level values below so item equality stays structural.
type fakePlatform struct {
	code    string
	pattern *regexp.Regexp
}

var (
	alpha = fakePlatform{code: "alpha", pattern: regexp.MustCompile(`item id: ([0-9A-Za-z]+)`)}
	beta  = fakePlatform{code: "beta", pattern: regexp.MustCompile(`auction id: ([0-9A-Za-z]+)`)}
	gamma = fakePlatform{code: "gamma", pattern: regexp.MustCompile(`listing id: ([0-9A-Za-z]+)`)}
)

func (p fakePlatform) Name() string                  { return p.code }
func (p fakePlatform) Code() string                  { return p.code }
func (p fakePlatform) Email() string                 { return p.code + "@example.com" }
func (p fakePlatform) HomeURL() string               { return "https://" + p.code + ".example.com/" }
func (p fakePlatform) ItemIDPattern() *regexp.Regexp { return p.pattern }

func (p fakePlatform) IsAccessibleToUserpage(ctx context.Context, sess Session, timeout time.Duration) (bool, error) {
	return true, nil
}

func (p fakePlatform) CreateItem(itemID, crostoreID string) Item {
	return Item{Platform: p, ItemID: itemID, CrostoreID: crostoreID}
}

func (p fakePlatform) CreateMessage(subject, body string) Message {
	return Message{Platform: p, Subject: subject, Body: body}
}

// fakeColumnStore keeps columns in memory and records mutations. Setting
// failColumn makes reads of that column fail with readErr.
type fakeColumnStore struct {
	columns    map[string][]string
	reads      int
	failColumn string
	readErr    error
	writes     []fakeCell
	clears     []fakeCell
}

type fakeCell struct {
	column string
	row    int
	value  string
}

func (s *fakeColumnStore) Column(ctx context.Context, column string) ([]string, error) {
	s.reads++
	if s.failColumn != "" && column == s.failColumn {
		return nil, s.readErr
	}
	return s.columns[column], nil
}

func (s *fakeColumnStore) WriteCell(ctx context.Context, column string, row int, value string) error {
	s.writes = append(s.writes, fakeCell{column: column, row: row, value: value})
	return nil
}

func (s *fakeColumnStore) ClearCell(ctx context.Context, column string, row int) error {
	s.clears = append(s.clears, fakeCell{column: column, row: row})
	return nil
}

// fakeSource yields scripted messages and mirrors the acknowledge-on-
// advance behavior of a real notification source: served counts yields,
// acked counts messages the consumer advanced past.
type fakeSource struct {
	messages []Message
	err      error
	served   int
	acked    int
}

func (s *fakeSource) SoldMessages(ctx context.Context, p Platform) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for _, m := range s.messages {
			s.served++
			if !yield(m, nil) {
				return
			}
			s.acked++
		}
		if s.err != nil {
			yield(Message{}, fmt.Errorf("sold messages: %w", s.err))
		}
	}
}
