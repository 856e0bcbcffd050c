package security

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "medboard-server-go/internal/platform/errors"
)

const (
	defaultGridSize    = 3
	defaultIssueWindow = 5 * time.Minute
)

// Puzzle is a shuffled-tile challenge issued for one privileged login
// attempt. Positions holds the shuffled starting layout: Positions[cell]
// is the tile index currently shown in that cell. The solved state is the
// identity ordering.
type Puzzle struct {
	ID        string    `json:"id"`
	GridSize  int       `json:"grid_size"`
	Positions []int     `json:"positions"`
	IssuedAt  time.Time `json:"issued_at"`
}

type issuedPuzzle struct {
	id       string
	issuedAt time.Time
}

// PuzzleOptions configures a PuzzleEngine.
type PuzzleOptions struct {
	Logger      Logger
	GridSize    int
	IssueWindow time.Duration
}

// PuzzleEngine issues drag-and-drop tile puzzles as a human-verification
// gate for high-privilege logins. Challenges are transient, keyed to the
// attempting account, single-use, and valid only within the issue window.
type PuzzleEngine struct {
	logger   Logger
	gridSize int
	window   time.Duration

	mutex  sync.Mutex
	issued map[string]issuedPuzzle
}

// NewPuzzleEngine builds an engine with an in-memory challenge table.
func NewPuzzleEngine(opts PuzzleOptions) *PuzzleEngine {
	gridSize := opts.GridSize
	if gridSize <= 1 {
		gridSize = defaultGridSize
	}
	window := opts.IssueWindow
	if window <= 0 {
		window = defaultIssueWindow
	}
	return &PuzzleEngine{
		logger:   opts.Logger,
		gridSize: gridSize,
		window:   window,
		issued:   make(map[string]issuedPuzzle),
	}
}

// shuffledPositions produces a random non-identity permutation of
// 0..n²-1 using a crypto-seeded Fisher-Yates shuffle.
func (e *PuzzleEngine) shuffledPositions() ([]int, error) {
	n := e.gridSize * e.gridSize
	positions := make([]int, n)
	for {
		for i := range positions {
			positions[i] = i
		}
		for i := n - 1; i > 0; i-- {
			r, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
			if err != nil {
				return nil, err
			}
			j := int(r.Int64())
			positions[i], positions[j] = positions[j], positions[i]
		}
		if !isIdentity(positions) {
			return positions, nil
		}
		// trivially solved layout, reshuffle
	}
}

func isIdentity(positions []int) bool {
	for i, p := range positions {
		if p != i {
			return false
		}
	}
	return true
}

// Generate issues a fresh puzzle for the account, replacing any previous
// not-yet-consumed challenge.
func (e *PuzzleEngine) Generate(account string) (Puzzle, error) {
	if account == "" {
		return Puzzle{}, errs.New(errs.KindPuzzle, "generate", "account required")
	}
	positions, err := e.shuffledPositions()
	if err != nil {
		return Puzzle{}, errs.Wrap(errs.KindPuzzle, "generate", "shuffle failed", err)
	}

	p := Puzzle{
		ID:        uuid.NewString(),
		GridSize:  e.gridSize,
		Positions: positions,
		IssuedAt:  time.Now(),
	}
	e.mutex.Lock()
	e.issued[account] = issuedPuzzle{id: p.ID, issuedAt: p.IssuedAt}
	e.mutex.Unlock()

	if e.logger != nil {
		e.logger.Debug("puzzle issued: %s account=%s", p.ID, account)
	}
	return p, nil
}

// Verify checks a claimed solution. Any verify call consumes the issued
// challenge, so a retry requires a fresh Generate. The solution is valid
// iff the puzzle id matches the issued one, the issue window has not
// passed, and the submitted layout is the identity ordering.
func (e *PuzzleEngine) Verify(account, puzzleID string, submitted []int) (bool, error) {
	e.mutex.Lock()
	challenge, ok := e.issued[account]
	delete(e.issued, account)
	e.mutex.Unlock()

	if !ok {
		return false, errs.New(errs.KindPuzzle, "verify", "no active challenge")
	}
	if challenge.id != puzzleID {
		return false, errs.New(errs.KindPuzzle, "verify", "challenge mismatch")
	}
	if time.Since(challenge.issuedAt) > e.window {
		return false, errs.New(errs.KindPuzzle, "verify", "challenge expired")
	}
	if len(submitted) != e.gridSize*e.gridSize || !isIdentity(submitted) {
		return false, nil
	}
	return true, nil
}

// Reset discards the account's pending challenge, if any.
func (e *PuzzleEngine) Reset(account string) {
	e.mutex.Lock()
	delete(e.issued, account)
	e.mutex.Unlock()
}

// CleanupExpired drops challenges past the issue window.
func (e *PuzzleEngine) CleanupExpired() int {
	now := time.Now()
	e.mutex.Lock()
	defer e.mutex.Unlock()

	removed := 0
	for account, challenge := range e.issued {
		if now.Sub(challenge.issuedAt) > e.window {
			delete(e.issued, account)
			removed++
		}
	}
	return removed
}
