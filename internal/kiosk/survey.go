package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"roomservice-agent/internal/backend"
)

// Step is a screen of the end-of-stay survey.
type Step string

const (
	StepNone           Step = "NONE"
	StepProductRatings Step = "PRODUCT_RATINGS"
	StepStaffRating    Step = "STAFF_RATING"
	StepStayRating     Step = "STAY_RATING"
)

var (
	ErrNoAssignment      = errors.New("survey requires an assignment")
	ErrWrongStep         = errors.New("survey is not at this step")
	ErrIncompleteRatings = errors.New("every delivered product needs a rating")
	ErrInvalidRating     = errors.New("ratings must be between 1 and 5")
	ErrMissingSurveyData = errors.New("survey data is incomplete")
	ErrSubmitInProgress  = errors.New("survey submission already in progress")
	ErrSurveyNotActive   = errors.New("no survey in progress")
	ErrSurveyReassigned  = errors.New("survey was closed or restarted")
)

const minRating, maxRating = 1, 5

// FeedbackAPI is the part of the backend the survey talks to.
type FeedbackAPI interface {
	DeliveredOrders(ctx context.Context, assignmentID int64) ([]backend.Order, error)
	SubmitCompleteFeedback(ctx context.Context, fb backend.CompleteFeedback) error
}

// SurveyState is a copy of the survey progress.
type SurveyState struct {
	Step           Step                   `json:"step"`
	AssignmentID   int64                  `json:"assignment_id,omitempty"`
	StaffName      string                 `json:"staff_name,omitempty"`
	ProductRatings backend.ProductRatings `json:"product_ratings,omitempty"`
	StaffRating    *int                   `json:"staff_rating,omitempty"`
	Submitting     bool                   `json:"submitting"`
}

// Survey walks the patient through product, staff and stay ratings and submits them together.
type Survey struct {
	api FeedbackAPI

	mu     sync.Mutex
	state  SurveyState
	orders []backend.Order
	loaded bool
	// gen changes on every start and reset so in-flight calls can tell their survey is gone.
	gen       uint64
	completed int64
}

func NewSurvey(api FeedbackAPI) *Survey {
	return &Survey{api: api, state: SurveyState{Step: StepNone}}
}

// Start opens the survey for an assignment. Starting the survey already in progress for the
// same assignment keeps its progress, and an assignment whose survey was completed here is not
// reopened.
func (s *Survey) Start(assignmentID int64, staffName string) error {
	if assignmentID <= 0 {
		return ErrNoAssignment
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step != StepNone && s.state.AssignmentID == assignmentID {
		if staffName != "" {
			s.state.StaffName = staffName
		}
		return nil
	}
	if s.completed == assignmentID {
		return nil
	}
	s.resetLocked()
	s.state.Step = StepProductRatings
	s.state.AssignmentID = assignmentID
	s.state.StaffName = staffName
	return nil
}

// LoadItems fetches the delivered orders the patient is asked to rate.
func (s *Survey) LoadItems(ctx context.Context) ([]backend.Order, error) {
	s.mu.Lock()
	if s.state.Step == StepNone {
		s.mu.Unlock()
		return nil, ErrSurveyNotActive
	}
	assignmentID, gen := s.state.AssignmentID, s.gen
	s.mu.Unlock()

	orders, err := s.api.DeliveredOrders(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil, ErrSurveyReassigned
	}
	s.orders = orders
	s.loaded = true
	return copyOrders(orders), nil
}

// SubmitProductRatings records a rating for every delivered item. The delivered orders are
// fetched first if LoadItems has not run yet.
func (s *Survey) SubmitProductRatings(ctx context.Context, ratings backend.ProductRatings) error {
	s.mu.Lock()
	step, loaded := s.state.Step, s.loaded
	s.mu.Unlock()
	if step != StepProductRatings {
		return fmt.Errorf("%w: expected %s, at %s", ErrWrongStep, StepProductRatings, step)
	}
	if !loaded {
		if _, err := s.LoadItems(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step != StepProductRatings {
		return fmt.Errorf("%w: expected %s, at %s", ErrWrongStep, StepProductRatings, s.state.Step)
	}

	accepted := make(backend.ProductRatings, len(s.orders))
	for _, order := range s.orders {
		for _, item := range order.Items {
			r, ok := ratings[order.ID][item.ProductID]
			if !ok {
				return fmt.Errorf("%w: order %d product %d", ErrIncompleteRatings, order.ID, item.ProductID)
			}
			if !validRating(r) {
				return fmt.Errorf("%w: got %d", ErrInvalidRating, r)
			}
			if accepted[order.ID] == nil {
				accepted[order.ID] = make(map[int64]int)
			}
			accepted[order.ID][item.ProductID] = r
		}
	}

	s.state.ProductRatings = accepted
	s.state.Step = StepStaffRating
	return nil
}

func (s *Survey) SubmitStaffRating(rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step != StepStaffRating {
		return fmt.Errorf("%w: expected %s, at %s", ErrWrongStep, StepStaffRating, s.state.Step)
	}
	if !validRating(rating) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	s.state.StaffRating = &rating
	s.state.Step = StepStayRating
	return nil
}

// Complete submits the survey with the stay rating. On success, or when the server already
// has feedback for the assignment, the survey resets. Other failures keep the stay step so
// the patient can retry.
func (s *Survey) Complete(ctx context.Context, stayRating int, comment string) error {
	s.mu.Lock()
	if s.state.ProductRatings == nil || s.state.StaffRating == nil {
		s.mu.Unlock()
		return ErrMissingSurveyData
	}
	if s.state.Step != StepStayRating {
		step := s.state.Step
		s.mu.Unlock()
		return fmt.Errorf("%w: expected %s, at %s", ErrWrongStep, StepStayRating, step)
	}
	if !validRating(stayRating) {
		s.mu.Unlock()
		return fmt.Errorf("%w: got %d", ErrInvalidRating, stayRating)
	}
	if s.state.Submitting {
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	s.state.Submitting = true
	fb := backend.CompleteFeedback{
		PatientAssignmentID: s.state.AssignmentID,
		ProductRatings:      copyRatings(s.state.ProductRatings),
		StaffRating:         *s.state.StaffRating,
		StayRating:          stayRating,
		Comment:             comment,
	}
	gen := s.gen
	s.mu.Unlock()

	err := s.api.SubmitCompleteFeedback(ctx, fb)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// Closed or restarted while the request was in flight.
		return err
	}
	s.state.Submitting = false
	if err != nil && !backend.IsAlreadySubmitted(err) {
		return err
	}
	s.resetLocked()
	s.completed = fb.PatientAssignmentID
	return nil
}

func (s *Survey) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Survey) State() SurveyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.ProductRatings = copyRatings(s.state.ProductRatings)
	if s.state.StaffRating != nil {
		r := *s.state.StaffRating
		st.StaffRating = &r
	}
	return st
}

func (s *Survey) resetLocked() {
	s.state = SurveyState{Step: StepNone}
	s.orders = nil
	s.loaded = false
	s.gen++
}

func validRating(r int) bool {
	return r >= minRating && r <= maxRating
}

func copyRatings(in backend.ProductRatings) backend.ProductRatings {
	if in == nil {
		return nil
	}
	out := make(backend.ProductRatings, len(in))
	for orderID, products := range in {
		m := make(map[int64]int, len(products))
		for id, r := range products {
			m[id] = r
		}
		out[orderID] = m
	}
	return out
}

func copyOrders(in []backend.Order) []backend.Order {
	out := make([]backend.Order, len(in))
	for i, o := range in {
		o.Items = append([]backend.OrderItem(nil), o.Items...)
		out[i] = o
	}
	return out
}
