package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
)

var errQuit = errors.New("quit")

// StudySession walks through the due cards of a set and records a rating for each.
type StudySession struct {
	service     *review.Service
	userID      string
	cardIDs     []string
	stdinReader *bufio.Reader
	printer     *Printer
	now         func() time.Time
}

// NewStudySession creates a StudySession reading answers from stdin.
func NewStudySession(service *review.Service, userID string, cardIDs []string, stdin io.Reader, stdout io.Writer) *StudySession {
	return &StudySession{
		service:     service,
		userID:      userID,
		cardIDs:     cardIDs,
		stdinReader: bufio.NewReader(stdin),
		printer:     NewPrinter(stdout),
		now:         time.Now,
	}
}

// Run studies every card due at the start of the session and returns how many were reviewed.
// It stops early on "q" or at the end of the input.
func (s *StudySession) Run(ctx context.Context) (int, error) {
	due, err := s.service.DueCards(ctx, s.userID, s.cardIDs, s.now())
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, s.printer.DueCards(nil, len(s.cardIDs))
	}

	reviewed := 0
	for i, cardID := range due {
		if err := ctx.Err(); err != nil {
			return reviewed, err
		}
		label, err := s.ask(fmt.Sprintf("[%d/%d] %s", i+1, len(due), cardID))
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return reviewed, err
		}
		if label == "" {
			continue
		}

		rec, err := s.service.RecordReview(ctx, s.userID, cardID, label, s.now())
		if err != nil {
			return reviewed, fmt.Errorf("record review of %s: %w", cardID, err)
		}
		reviewed++
		if err := s.printer.Review(rec); err != nil {
			return reviewed, err
		}
	}
	return reviewed, s.printer.printf("Reviewed %d of %d due cards\n", reviewed, len(due))
}

// ask prompts until it reads a valid rating. An empty answer or "s" skips the card.
func (s *StudySession) ask(prompt string) (string, error) {
	for {
		if err := s.printer.printf("%s %s: ", s.printer.bold.Sprint(prompt), "(hard/good/easy, s to skip, q to quit)"); err != nil {
			return "", err
		}
		line, err := s.stdinReader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return "", err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "q", "quit":
			return "", errQuit
		case "", "s", "skip":
			return "", nil
		}
		rating, parseErr := scheduler.ParseRating(answer)
		if parseErr == nil {
			return rating.String(), nil
		}
		if err := s.printer.printf("%s\n", s.printer.red.Sprintf("unknown rating %q", answer)); err != nil {
			return "", err
		}
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
	}
}
