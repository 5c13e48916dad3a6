// Package pager models the browsing state behind the order history
// widget: which delivery date is selected, the cursors bracketing the
// page on screen, and which navigation controls are live. The widget
// script in ui/assets mirrors these transitions in the browser; this
// package is the testable reference for them.
package pager

import "errors"

// Phase is the widget's lifecycle position.
type Phase string

const (
	// Idle is the initial phase: date picker shown, nothing fetched.
	Idle Phase = "idle"
	// Loading means a fetch is in flight and the triggering controls
	// are disabled.
	Loading Phase = "loading"
	// Loaded means a non-empty page is on screen.
	Loaded Phase = "loaded"
	// Empty means the last fetch returned no orders for the date.
	Empty Phase = "empty"
	// Errored means the last fetch failed; stored cursors and date are
	// kept so the user can retry manually.
	Errored Phase = "errored"
)

var (
	ErrFetchInFlight  = errors.New("a fetch is already in flight")
	ErrNoDate         = errors.New("a delivery date is required")
	ErrNotLoaded      = errors.New("no page is loaded")
	ErrNoNextPage     = errors.New("next page is not available")
	ErrNoPreviousPage = errors.New("previous page is not available")
)

// State is the client-held pagination state. The zero value is Idle
// with nothing stored.
type State struct {
	Phase        Phase
	DeliveryDate string
	FirstCursor  string
	LastCursor   string
	HasNext      bool
	HasPrev      bool
}

// Fetch describes the request a transition asks the driver to issue.
type Fetch struct {
	DeliveryDate string
	Cursor       string
	ToNextPage   bool
}

// PageResult summarizes one fetched page for Resolve.
type PageResult struct {
	Size            int
	FirstCursor     string
	LastCursor      string
	HasNextPage     bool
	HasPreviousPage bool
}

// SubmitDate starts a fresh browse for the given delivery date. Stored
// cursors are cleared and a cursorless forward fetch is issued.
func (s State) SubmitDate(date string) (State, Fetch, error) {
	if s.Phase == Loading {
		return s, Fetch{}, ErrFetchInFlight
	}
	if date == "" {
		return s, Fetch{}, ErrNoDate
	}

	next := State{Phase: Loading, DeliveryDate: date}
	return next, Fetch{DeliveryDate: date, ToNextPage: true}, nil
}

// Next pages forward from the last edge on screen.
func (s State) Next() (State, Fetch, error) {
	if s.Phase != Loaded {
		return s, Fetch{}, ErrNotLoaded
	}
	if !s.HasNext {
		return s, Fetch{}, ErrNoNextPage
	}

	next := s
	next.Phase = Loading
	return next, Fetch{DeliveryDate: s.DeliveryDate, Cursor: s.LastCursor, ToNextPage: true}, nil
}

// Previous pages backward from the first edge on screen.
func (s State) Previous() (State, Fetch, error) {
	if s.Phase != Loaded {
		return s, Fetch{}, ErrNotLoaded
	}
	if !s.HasPrev {
		return s, Fetch{}, ErrNoPreviousPage
	}

	next := s
	next.Phase = Loading
	return next, Fetch{DeliveryDate: s.DeliveryDate, Cursor: s.FirstCursor, ToNextPage: false}, nil
}

// Resolve applies a successful fetch result. Responses arriving
// outside Loading (a stale fetch) leave the state untouched.
func (s State) Resolve(page PageResult) State {
	if s.Phase != Loading {
		return s
	}

	if page.Size == 0 {
		next := s
		next.Phase = Empty
		next.HasNext = false
		next.HasPrev = false
		return next
	}

	return State{
		Phase:        Loaded,
		DeliveryDate: s.DeliveryDate,
		FirstCursor:  page.FirstCursor,
		LastCursor:   page.LastCursor,
		HasNext:      page.HasNextPage,
		HasPrev:      page.HasPreviousPage,
	}
}

// Fail applies a transport or server failure. Cursors and date stay
// intact so a manual retry can reuse them.
func (s State) Fail() State {
	next := s
	next.Phase = Errored
	return next
}

// NextDisabled reports whether the Next control should be disabled.
func (s State) NextDisabled() bool {
	return s.Phase != Loaded || !s.HasNext
}

// PreviousDisabled reports whether the Previous control should be
// disabled.
func (s State) PreviousDisabled() bool {
	return s.Phase != Loaded || !s.HasPrev
}
