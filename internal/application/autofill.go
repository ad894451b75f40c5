package application

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"figpanel/internal/debounce"
	"figpanel/internal/domain/model"
	"figpanel/internal/domain/port/driven"
	"figpanel/internal/domain/transform"
)

// itemURLPattern matches a remote item page URL and captures the item id.
// Bare numeric input is accepted directly.
var (
	itemURLPattern = regexp.MustCompile(`^https?://(?:www\.)?myfigurecollection\.net/item/(\d+)(?:[/?#].*)?$`)
	bareIDPattern  = regexp.MustCompile(`^\d+$`)
)

// ParseItemRef extracts a remote item id from user input, which may be a
// bare numeric id or an item page URL. ok is false when the input matches
// neither shape.
func ParseItemRef(input string) (int64, bool) {
	if bareIDPattern.MatchString(input) {
		id, err := strconv.ParseInt(input, 10, 64)
		return id, err == nil
	}
	if m := itemURLPattern.FindStringSubmatch(input); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		return id, err == nil
	}
	return 0, false
}

// AutoFillResult is the latest outcome of the scrape workflow.
type AutoFillResult struct {
	RemoteID  int64                `json:"remote_id"`
	Form      transform.FormRecord `json:"form"`
	FetchedAt time.Time            `json:"fetched_at"`
}

// AutoFill runs the debounced item-scrape workflow behind the add-item form:
// keystrokes land via Input, and once they pause for the configured delay
// the referenced item is scraped and merged into the draft, filling only
// fields the user has not already typed into.
//
// Aborted scrape runs disappear without a trace; only a run that finishes
// publishes a result.
type AutoFill struct {
	client driven.RemoteClient

	mu     sync.Mutex
	draft  transform.FormRecord
	result *AutoFillResult

	deb *debounce.Debouncer
}

// NewAutoFill creates an AutoFill scraping through client after delay of
// input inactivity.
func NewAutoFill(client driven.RemoteClient, delay time.Duration) *AutoFill {
	a := &AutoFill{client: client}
	a.deb = debounce.New(delay, a.scrape)
	return a
}

// Input feeds one keystroke's worth of reference-field input. Input that
// does not reference an item cancels any pending scrape instead of arming one.
func (a *AutoFill) Input(value string) {
	if _, ok := ParseItemRef(value); !ok {
		a.deb.CancelPending()
		return
	}
	a.deb.Trigger(value)
}

// SetDraft replaces the current form draft. Scrape results merge into
// whatever draft is current when they land.
func (a *AutoFill) SetDraft(form transform.FormRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.draft = form
}

// Result returns the latest published result and the current draft. The
// result is nil until a scrape has completed.
func (a *AutoFill) Result() (transform.FormRecord, *AutoFillResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draft, a.result
}

// Close aborts any pending or in-flight scrape and bars further runs.
func (a *AutoFill) Close() {
	a.deb.Close()
}

// scrape is the debounced task: fetch the item and merge it into the draft.
// It publishes nothing when the run was aborted.
func (a *AutoFill) scrape(ctx context.Context, value string) {
	remoteID, ok := ParseItemRef(value)
	if !ok {
		return
	}

	item, err := a.client.ScrapeItem(ctx, remoteID)
	if err != nil {
		if ctx.Err() != nil {
			// Aborted by a newer run or by Close; vanish silently.
			return
		}
		slog.Warn("item scrape failed", "remote_id", remoteID, "error", err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	a.publish(remoteID, *item)
}

func (a *AutoFill) publish(remoteID int64, item model.ScrapedItem) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.draft = transform.MergeScraped(a.draft, item)
	a.result = &AutoFillResult{
		RemoteID:  remoteID,
		Form:      a.draft,
		FetchedAt: time.Now().UTC(),
	}
	slog.Info("autofill applied", "remote_id", remoteID)
}
