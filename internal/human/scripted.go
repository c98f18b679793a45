package human

import (
	"context"
	"sync"
)

// Scripted answers from fixed lists and records what it was asked
type Scripted struct {
	mu        sync.Mutex
	answers   []string
	approvals []bool
	asked     []string
	confirms  []string
}

func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

// WithApprovals sets the answers given to Confirm, in order
func (s *Scripted) WithApprovals(approvals ...bool) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals = approvals
	return s
}

func (s *Scripted) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.asked = append(s.asked, prompt)
	if len(s.answers) == 0 {
		return "", ErrNoAnswer
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// Confirm returns the next scripted approval, or false when none are left
func (s *Scripted) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirms = append(s.confirms, message)
	if len(s.approvals) == 0 {
		return false, nil
	}
	ok := s.approvals[0]
	s.approvals = s.approvals[1:]
	return ok, nil
}

// Asked returns the prompts seen by Ask
func (s *Scripted) Asked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.asked...)
}

// Confirms returns the messages seen by Confirm
func (s *Scripted) Confirms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.confirms...)
}
