package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"cognita/internal/core"
)

// Request bodies. Ids and owners always come from the path and the token.
type (
	studySessionRequest struct {
		Subject         string `json:"subject"`
		DurationMinutes int    `json:"duration_minutes"`
		Notes           string `json:"notes"`
		SessionDate     string `json:"session_date"`
	}

	habitRequest struct {
		Name            string         `json:"name"`
		Description     string         `json:"description"`
		TargetFrequency core.Frequency `json:"target_frequency"`
		Color           string         `json:"color"`
		IsActive        *bool          `json:"is_active"`
	}

	transactionRequest struct {
		Type            core.TransactionType `json:"type"`
		Amount          amountText           `json:"amount"`
		Category        string               `json:"category"`
		Description     string               `json:"description"`
		TransactionDate string               `json:"transaction_date"`
	}

	moodRequest struct {
		MoodRating  int    `json:"mood_rating"`
		EnergyLevel int    `json:"energy_level"`
		StressLevel int    `json:"stress_level"`
		Notes       string `json:"notes"`
		EntryDate   string `json:"entry_date"`
	}

	taskRequest struct {
		Title            string          `json:"title"`
		Description      string          `json:"description"`
		DueDate          string          `json:"due_date"`
		Priority         core.Priority   `json:"priority"`
		Status           core.TaskStatus `json:"status"`
		EstimatedMinutes *int            `json:"estimated_minutes"`
	}

	// taskPatch updates only the fields present. An empty due_date clears it.
	taskPatch struct {
		Title            *string          `json:"title"`
		Description      *string          `json:"description"`
		DueDate          *string          `json:"due_date"`
		Priority         *core.Priority   `json:"priority"`
		Status           *core.TaskStatus `json:"status"`
		EstimatedMinutes *int             `json:"estimated_minutes"`
	}

	toggleResponse struct {
		HabitID   uuid.UUID `json:"habit_id"`
		Date      string    `json:"date"`
		Completed bool      `json:"completed"`
	}
)

// optionalInstant parses s, treating "" as absent. A missing date is left
// zero so that validation reports it.
func (s *Server) optionalInstant(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return parseInstant(v, s.location)
}

// handle runs fn for the authenticated user and writes its result.
func (s *Server) handle(w http.ResponseWriter, r *http.Request, status int, fn func(userID uuid.UUID) (any, error)) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := fn(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

// handleDelete parses the {id} path value and runs del for it.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, del func(userID, id uuid.UUID) error) {
	s.handle(w, r, http.StatusNoContent, func(userID uuid.UUID) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		return nil, del(userID, id)
	})
}

// Study sessions

func (s *Server) handleListStudySessions(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, func(userID uuid.UUID) (any, error) {
		return s.records.ListStudySessions(r.Context(), userID)
	})
}

func (s *Server) handleCreateStudySession(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusCreated, func(userID uuid.UUID) (any, error) {
		var req studySessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		date, err := s.optionalInstant(req.SessionDate)
		if err != nil {
			return nil, err
		}
		return s.records.CreateStudySession(r.Context(), userID, core.StudySession{
			Subject:         sanitizeInput(req.Subject),
			DurationMinutes: req.DurationMinutes,
			Notes:           sanitizeInput(req.Notes),
			SessionDate:     date,
		})
	})
}

func (s *Server) handleDeleteStudySession(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, func(userID, id uuid.UUID) error {
		return s.records.DeleteStudySession(r.Context(), userID, id)
	})
}

// Habits

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, func(userID uuid.UUID) (any, error) {
		return s.records.ListHabits(r.Context(), userID)
	})
}

func (req habitRequest) habit() core.Habit {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return core.Habit{
		Name:            sanitizeInput(req.Name),
		Description:     sanitizeInput(req.Description),
		TargetFrequency: req.TargetFrequency,
		Color:           sanitizeInput(req.Color),
		IsActive:        active,
	}
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusCreated, func(userID uuid.UUID) (any, error) {
		var req habitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		return s.records.CreateHabit(r.Context(), userID, req.habit())
	})
}

func (s *Server) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, func(userID uuid.UUID) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		var req habitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		if req.TargetFrequency == "" {
			req.TargetFrequency = core.Daily
		}
		h := req.habit()
		h.ID = id
		return s.records.UpdateHabit(r.Context(), userID, h)
	})
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, func(userID, id uuid.UUID) error {
		return s.records.DeleteHabit(r.Context(), userID, id)
	})
}

func (s *Server) handleToggleHabit(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, func(userID uuid.UUID) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		day := r.PathValue("date")
		completed, err := s.records.ToggleHabitCompletion(r.Context(), userID, id, day)
		if err != nil {
			return nil, err
		}
		return toggleResponse{HabitID: id, Date: day, Completed: completed}, nil
	})
}

// Finance transactions

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, func(userID uuid.UUID) (any, error) {
		return s.records.ListTransactions(r.Context(), userID)
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusCreated, func(userID uuid.UUID) (any, error) {
		var req transactionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		amount, err := core.ParseAmount(string(req.Amount))
		if err != nil {
			return nil, err
		}
		date, err := s.optionalInstant(req.TransactionDate)
		if err != nil {
			return nil, err
		}
		return s.records.CreateTransaction(r.Context(), userID, core.FinanceTransaction{
			Type:            req.Type,
			Amount:          amount,
			Category:        sanitizeInput(req.Category),
			Description:     sanitizeInput(req.Description),
			TransactionDate: date,
		})
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, func(userID, id uuid.UUID) error {
		return s.records.DeleteTransaction(r.Context(), userID, id)
	})
}

// Mood

func (s *Server) handleListMood(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, func(userID uuid.UUID) (any, error) {
		return s.records.ListMoodEntries(r.Context(), userID)
	})
}

// handleUpsertMood stores the entry for entry_date, defaulting to today in
// the configured time zone.
func (s *Server) handleUpsertMood(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, func(userID uuid.UUID) (any, error) {
		var req moodRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		if req.EntryDate == "" {
			req.EntryDate = s.now().In(s.location).Format(core.DateKeyLayout)
		}
		return s.records.UpsertMoodEntry(r.Context(), userID, core.MoodEntry{
			MoodRating:  req.MoodRating,
			EnergyLevel: req.EnergyLevel,
			StressLevel: req.StressLevel,
			Notes:       sanitizeInput(req.Notes),
			EntryDate:   req.EntryDate,
		})
	})
}

func (s *Server) handleDeleteMood(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, func(userID, id uuid.UUID) error {
		return s.records.DeleteMoodEntry(r.Context(), userID, id)
	})
}

// Tasks

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, func(userID uuid.UUID) (any, error) {
		return s.records.ListTasks(r.Context(), userID)
	})
}

func (s *Server) dueDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := parseInstant(v, s.location)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusCreated, func(userID uuid.UUID) (any, error) {
		var req taskRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		due, err := s.dueDate(req.DueDate)
		if err != nil {
			return nil, err
		}
		return s.records.CreateTask(r.Context(), userID, core.Task{
			Title:            sanitizeInput(req.Title),
			Description:      sanitizeInput(req.Description),
			DueDate:          due,
			Priority:         req.Priority,
			Status:           req.Status,
			EstimatedMinutes: req.EstimatedMinutes,
		})
	})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, func(userID uuid.UUID) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		var patch taskPatch
		if err := decodeJSON(w, r, &patch); err != nil {
			return nil, err
		}
		t, err := s.records.GetTask(r.Context(), userID, id)
		if err != nil {
			return nil, err
		}
		if patch.Title != nil {
			t.Title = sanitizeInput(*patch.Title)
		}
		if patch.Description != nil {
			t.Description = sanitizeInput(*patch.Description)
		}
		if patch.DueDate != nil {
			if t.DueDate, err = s.dueDate(*patch.DueDate); err != nil {
				return nil, err
			}
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.EstimatedMinutes != nil {
			t.EstimatedMinutes = patch.EstimatedMinutes
		}
		return s.records.UpdateTask(r.Context(), userID, t)
	})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, func(userID, id uuid.UUID) error {
		return s.records.DeleteTask(r.Context(), userID, id)
	})
}
