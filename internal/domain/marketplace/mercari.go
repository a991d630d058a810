package marketplace

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/crostore/backend/internal/domain/crosslist"
)

const (
	mercariCode    = "mercari"
	mercariName    = "メルカリ"
	mercariEmail   = "no-reply@mercari.jp"
	mercariHomeURL = "https://jp.mercari.com/"

	mercariMypageURL = "https://jp.mercari.com/mypage"
	mercariSigninURL = "https://login.jp.mercari.com/signin"

	// The suspend button on the seller's edit form. Mercari offers no way
	// to end a listing besides driving this form.
	mercariSuspendButtonXPath = `//*[@id="main"]/form/div[2]/div[2]/button`
)

var mercariItemIDPattern = regexp.MustCompile(`商品ID : ([0-9a-zA-Z]+)`)

// Mercari is the メルカリ marketplace.
type Mercari struct{}

var (
	_ crosslist.Platform  = Mercari{}
	_ crosslist.Canceller = Mercari{}
)

func (Mercari) Name() string    { return mercariName }
func (Mercari) Code() string    { return mercariCode }
func (Mercari) Email() string   { return mercariEmail }
func (Mercari) HomeURL() string { return mercariHomeURL }

func (Mercari) ItemIDPattern() *regexp.Regexp { return mercariItemIDPattern }

// CreateItem constructs a Mercari item.
func (Mercari) CreateItem(itemID, crostoreID string) crosslist.Item {
	return crosslist.Item{Platform: Mercari{}, ItemID: itemID, CrostoreID: crostoreID}
}

// CreateMessage constructs a Mercari sale notification.
func (Mercari) CreateMessage(subject, body string) crosslist.Message {
	return crosslist.Message{Platform: Mercari{}, Subject: subject, Body: body}
}

// SellingPageURL returns the public listing page of an item.
func (Mercari) SellingPageURL(itemID string) string {
	return "https://jp.mercari.com/item/" + itemID
}

func (Mercari) editPageURL(itemID string) string {
	return "https://jp.mercari.com/sell/edit/" + itemID
}

// IsAccessibleToUserpage opens the Mercari my-page and watches for a
// redirect to the sign-in form. The redirect means the session lost its
// login; staying on the my-page until the wait times out means the session
// is authenticated.
func (Mercari) IsAccessibleToUserpage(ctx context.Context, sess crosslist.Session, timeout time.Duration) (bool, error) {
	if err := sess.Navigate(ctx, mercariMypageURL); err != nil {
		return false, err
	}
	err := sess.WaitLocation(ctx, mercariSigninURL, timeout)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, crosslist.ErrWaitTimeout):
		return true, nil
	default:
		return false, err
	}
}

// Cancel suspends the listing through the seller edit form and waits for
// Mercari to bounce the session back to the listing page.
func (m Mercari) Cancel(ctx context.Context, sess crosslist.Session, item crosslist.Item, timeout time.Duration) error {
	editURL := m.editPageURL(item.ItemID)
	if err := sess.Navigate(ctx, editURL); err != nil {
		return fmt.Errorf("%w: cannot access the edit page %s: %v", crosslist.ErrItemNotCanceled, editURL, err)
	}
	location, err := sess.Location(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", crosslist.ErrItemNotCanceled, err)
	}
	if location != editURL {
		return fmt.Errorf("%w: redirected to %s, make sure you are logged in to Mercari on this browser", crosslist.ErrItemNotCanceled, location)
	}
	if err := sess.Click(ctx, mercariSuspendButtonXPath, timeout); err != nil {
		return fmt.Errorf("%w: cannot click the suspend button: %v", crosslist.ErrItemNotCanceled, err)
	}
	if err := sess.WaitLocation(ctx, m.SellingPageURL(item.ItemID), timeout); err != nil {
		return fmt.Errorf("%w: the listing page did not come back after suspending: %v", crosslist.ErrItemNotCanceled, err)
	}
	return nil
}
