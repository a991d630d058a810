// Package mailbox reads sale notifications out of a Gmail mailbox and
// acknowledges them with a handled label so a notification is consumed by
// at most one successful run.
package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/crostore/backend/internal/domain/crosslist"
)

const (
	defaultUserID            = "me"
	defaultHandledLabel      = "crostored"
	defaultRequestsPerSecond = 4

	listPageSize = 100
)

// soldQueries maps a platform code to the Gmail search finding that
// platform's sale notifications. The verb carries the sender address.
var soldQueries = map[string]string{
	"mercari":       `from:(%s) AND "購入しました"`,
	"yahoo_auction": `from:(%s) AND {subject:("Yahoo!オークション - 終了（落札者あり）")}`,
}

// Config holds the mailbox settings.
type Config struct {
	UserID            string  // mailbox owner, "me" for the authorized user
	HandledLabel      string  // label marking already-processed notifications
	RequestsPerSecond float64 // client-side API politeness limit

	// SkipAcknowledge leaves consumed notifications unlabeled so a later
	// run sees them again. Dry runs set it to keep the mailbox untouched.
	SkipAcknowledge bool
}

// Gmail reads sale notifications through the Gmail API. It implements
// crosslist.NotificationSource.
type Gmail struct {
	svc          *gmail.Service
	userID       string
	handledLabel string
	skipAck      bool
	limiter      *rate.Limiter
	log          *zap.Logger
}

var _ crosslist.NotificationSource = (*Gmail)(nil)

// NewGmail creates a mailbox over an authorized Gmail service.
func NewGmail(svc *gmail.Service, cfg Config, log *zap.Logger) *Gmail {
	if cfg.UserID == "" {
		cfg.UserID = defaultUserID
	}
	if cfg.HandledLabel == "" {
		cfg.HandledLabel = defaultHandledLabel
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gmail{
		svc:          svc,
		userID:       cfg.UserID,
		handledLabel: cfg.HandledLabel,
		skipAck:      cfg.SkipAcknowledge,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:          log,
	}
}

// SoldMessages yields p's unhandled sale notifications in mailbox order.
// Each message is marked with the handled label after its yield returns,
// so a consumer that stops early leaves the unconsumed tail unmarked;
// with SkipAcknowledge set no message is marked at all. Messages whose
// payload cannot be decoded are logged, marked handled, and skipped. API
// failures terminate the sequence.
func (g *Gmail) SoldMessages(ctx context.Context, p crosslist.Platform) iter.Seq2[crosslist.Message, error] {
	return func(yield func(crosslist.Message, error) bool) {
		query, err := soldQuery(p)
		if err != nil {
			yield(crosslist.Message{}, err)
			return
		}
		labelID, err := g.handledLabelID(ctx)
		if err != nil {
			yield(crosslist.Message{}, err)
			return
		}
		query += " AND -{label:" + g.handledLabel + "}"
		ids, err := g.listSoldMessageIDs(ctx, query)
		if err != nil {
			yield(crosslist.Message{}, err)
			return
		}
		for _, id := range ids {
			gm, err := g.getMessage(ctx, id)
			if err != nil {
				yield(crosslist.Message{}, err)
				return
			}
			msg, err := newMessage(p, gm)
			if err != nil {
				g.log.Error("cannot read sale notification",
					zap.String("platform", p.Code()),
					zap.String("message_id", id),
					zap.Error(err),
				)
				if err := g.markHandled(ctx, id, labelID); err != nil {
					yield(crosslist.Message{}, err)
					return
				}
				continue
			}
			if !yield(msg, nil) {
				return
			}
			if err := g.markHandled(ctx, id, labelID); err != nil {
				yield(crosslist.Message{}, err)
				return
			}
		}
	}
}

// soldQuery builds the Gmail search for p's sale notifications.
func soldQuery(p crosslist.Platform) (string, error) {
	format, ok := soldQueries[p.Code()]
	if !ok {
		return "", fmt.Errorf("%w: no sold-mail query for %s", crosslist.ErrUnsupportedPlatform, p.Code())
	}
	return fmt.Sprintf(format, p.Email()), nil
}

// handledLabelID resolves the handled label, creating it on first use.
func (g *Gmail) handledLabelID(ctx context.Context) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := g.svc.Users.Labels.List(g.userID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, label := range resp.Labels {
		if label.Name == g.handledLabel {
			return label.Id, nil
		}
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	created, err := g.svc.Users.Labels.Create(g.userID, &gmail.Label{Name: g.handledLabel}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", g.handledLabel, err)
	}
	g.log.Info("created handled label",
		zap.String("label", g.handledLabel),
		zap.String("label_id", created.Id),
	)
	return created.Id, nil
}

// listSoldMessageIDs lists every message id matching query. The listing
// paginates to completion before any message is fetched or marked, so
// label changes during the run cannot shift the result window.
func (g *Gmail) listSoldMessageIDs(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		call := g.svc.Users.Messages.List(g.userID).Q(query).MaxResults(listPageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (g *Gmail) getMessage(ctx context.Context, id string) (*gmail.Message, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	gm, err := g.svc.Users.Messages.Get(g.userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return gm, nil
}

func (g *Gmail) markHandled(ctx context.Context, id, labelID string) error {
	if g.skipAck {
		g.log.Info("leaving sale notification unmarked",
			zap.String("message_id", id),
		)
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	req := &gmail.ModifyMessageRequest{AddLabelIds: []string{labelID}}
	if _, err := g.svc.Users.Messages.Modify(g.userID, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mark message %s handled: %w", id, err)
	}
	g.log.Info("marked sale notification handled",
		zap.String("message_id", id),
		zap.String("label", g.handledLabel),
	)
	return nil
}

// newMessage converts a raw Gmail message into p's notification message.
func newMessage(p crosslist.Platform, gm *gmail.Message) (crosslist.Message, error) {
	if gm.Payload == nil {
		return crosslist.Message{}, fmt.Errorf("message %s has no payload", gm.Id)
	}
	body, err := decodeMessageBody(gm.Payload)
	if err != nil {
		return crosslist.Message{}, fmt.Errorf("message %s: %w", gm.Id, err)
	}
	return p.CreateMessage(messageSubject(gm.Payload), body), nil
}

// messageSubject finds the Subject header. Header names are matched
// case-insensitively per RFC 5322.
func messageSubject(payload *gmail.MessagePart) string {
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, "Subject") {
			return h.Value
		}
	}
	return ""
}

// decodeMessageBody returns the notification text: the direct payload
// body when present, otherwise the first text/plain part.
func decodeMessageBody(payload *gmail.MessagePart) (string, error) {
	part := payload
	if part.Body == nil || part.Body.Data == "" {
		part = firstTextPart(payload.Parts)
	}
	if part == nil || part.Body == nil || part.Body.Data == "" {
		return "", errors.New("no text body")
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(raw), nil
}

func firstTextPart(parts []*gmail.MessagePart) *gmail.MessagePart {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return part
		}
		if nested := firstTextPart(part.Parts); nested != nil {
			return nested
		}
	}
	return nil
}
