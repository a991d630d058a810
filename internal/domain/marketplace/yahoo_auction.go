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
	yahooAuctionCode    = "yahoo_auction"
	yahooAuctionName    = "ヤフオク!"
	yahooAuctionEmail   = "auction-master@mail.yahoo.co.jp"
	yahooAuctionHomeURL = "https://auctions.yahoo.co.jp/"

	yahooAuctionMyPageURL = "https://auctions.yahoo.co.jp/user/jp/show/mystatus"
	yahooAuctionLoginURL  = "https://login.yahoo.co.jp/config/login"

	// The login anchor on the auction home page. Clicking it with a live
	// account cookie restores the session without entering credentials.
	yahooAuctionLoginButtonXPath = `//*[@id="topPageArea"]//a[text()="ログイン"]`

	// The confirm button on the cancel-auction form.
	yahooAuctionCancelButtonXPath = "/html/body/center[1]/form/table/tbody/tr[3]/td/input"
)

var yahooAuctionItemIDPattern = regexp.MustCompile(`オークションID：([0-9a-zA-Z]+)`)

// YahooAuction is the ヤフオク! (Yahoo!Auction) marketplace.
type YahooAuction struct{}

var (
	_ crosslist.Platform  = YahooAuction{}
	_ crosslist.Canceller = YahooAuction{}
)

func (YahooAuction) Name() string    { return yahooAuctionName }
func (YahooAuction) Code() string    { return yahooAuctionCode }
func (YahooAuction) Email() string   { return yahooAuctionEmail }
func (YahooAuction) HomeURL() string { return yahooAuctionHomeURL }

func (YahooAuction) ItemIDPattern() *regexp.Regexp { return yahooAuctionItemIDPattern }

// CreateItem constructs a Yahoo!Auction item.
func (YahooAuction) CreateItem(itemID, crostoreID string) crosslist.Item {
	return crosslist.Item{Platform: YahooAuction{}, ItemID: itemID, CrostoreID: crostoreID}
}

// CreateMessage constructs a Yahoo!Auction sale notification.
func (YahooAuction) CreateMessage(subject, body string) crosslist.Message {
	return crosslist.Message{Platform: YahooAuction{}, Subject: subject, Body: body}
}

// SellingPageURL returns the public auction page of an item.
func (YahooAuction) SellingPageURL(itemID string) string {
	return "https://page.auctions.yahoo.co.jp/jp/auction/" + itemID
}

func (YahooAuction) cancelPageURL(itemID string) string {
	return "https://page.auctions.yahoo.co.jp/jp/show/cancelauction?aID=" + itemID
}

// IsAccessibleToUserpage opens the my-auctions page and watches for a
// redirect to the Yahoo login form. Staying on the page until the wait
// times out means the session is authenticated; a redirect triggers one
// relogin attempt through the home-page login anchor before giving up.
func (y YahooAuction) IsAccessibleToUserpage(ctx context.Context, sess crosslist.Session, timeout time.Duration) (bool, error) {
	if err := sess.Navigate(ctx, yahooAuctionMyPageURL); err != nil {
		return false, err
	}
	err := sess.WaitLocation(ctx, yahooAuctionLoginURL, timeout)
	switch {
	case errors.Is(err, crosslist.ErrWaitTimeout):
		return true, nil
	case err != nil:
		return false, err
	}
	return y.tryRelogin(ctx, sess, timeout)
}

// tryRelogin clicks the home-page login anchor, which silently restores
// the session when the account cookie is still valid. Bouncing back to the
// login form means the relogin failed and the user must sign in manually.
func (y YahooAuction) tryRelogin(ctx context.Context, sess crosslist.Session, timeout time.Duration) (bool, error) {
	if err := sess.Navigate(ctx, yahooAuctionHomeURL); err != nil {
		return false, err
	}
	if err := sess.Click(ctx, yahooAuctionLoginButtonXPath, timeout); err != nil {
		if errors.Is(err, crosslist.ErrElementNotFound) {
			return false, nil
		}
		return false, err
	}
	err := sess.WaitLocation(ctx, yahooAuctionLoginURL, timeout)
	switch {
	case errors.Is(err, crosslist.ErrWaitTimeout):
		return true, nil
	case err != nil:
		return false, err
	}
	return false, nil
}

// Cancel drives the cancel-auction form for the listing.
func (y YahooAuction) Cancel(ctx context.Context, sess crosslist.Session, item crosslist.Item, timeout time.Duration) error {
	cancelURL := y.cancelPageURL(item.ItemID)
	if err := sess.Navigate(ctx, cancelURL); err != nil {
		return fmt.Errorf("%w: cannot access the cancel page %s: %v", crosslist.ErrItemNotCanceled, cancelURL, err)
	}
	location, err := sess.Location(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", crosslist.ErrItemNotCanceled, err)
	}
	if location != cancelURL {
		return fmt.Errorf("%w: redirected to %s, make sure you are logged in to Yahoo!Auction on this browser", crosslist.ErrItemNotCanceled, location)
	}
	if err := sess.Click(ctx, yahooAuctionCancelButtonXPath, timeout); err != nil {
		return fmt.Errorf("%w: cannot click the cancel button: %v", crosslist.ErrItemNotCanceled, err)
	}
	if err := sess.WaitVisible(ctx, "/html/body", timeout); err != nil {
		return fmt.Errorf("%w: the cancel result page did not load: %v", crosslist.ErrItemNotCanceled, err)
	}
	return nil
}
