package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInUse         = errors.New("in use")
)

// AlgorithmStatus is the per-camera run state of one algorithm
type AlgorithmStatus string

// Константы статусов
const (
	StatusIdle    AlgorithmStatus = "idle"
	StatusRunning AlgorithmStatus = "running"
)

// DefaultOption is the result label every algorithm falls back to.
const DefaultOption = "else"

// Rule is one action invocation template tied to an algorithm result label.
type Rule struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// ActionDict maps algorithm name -> result option -> ordered reaction rules.
type ActionDict map[string]map[string][]Rule

// RawActionDict is an action configuration as sent by a client, before validation.
type RawActionDict map[string]map[string][]map[string]any

// Raw converts a normalized dict back into its client form.
func (d ActionDict) Raw() RawActionDict {
	raw := make(RawActionDict, len(d))
	for algorithm, options := range d {
		raw[algorithm] = make(map[string][]map[string]any, len(options))
		for option, rules := range options {
			list := make([]map[string]any, 0, len(rules))
			for _, r := range rules {
				list = append(list, map[string]any{"action": r.Action, "params": r.Params})
			}
			raw[algorithm][option] = list
		}
	}
	return raw
}

// Camera Структура для камер
type Camera struct {
	ID              string                     `json:"id"`
	Name            string                     `json:"name"`
	StreamingURL    string                     `json:"streaming_url"`
	ActionDict      ActionDict                 `json:"action_dict"`
	AlgorithmStatus map[string]AlgorithmStatus `json:"algorithm_status"`
	UpdatedAt       time.Time                  `json:"last_updated"`
}

// Algorithm is a named detection routine with its possible result labels.
type Algorithm struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Options     []string  `json:"options"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"last_updated"`
}

// Action is a named reaction routine with typed parameters.
type Action struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Params      map[string]ParamSpec `json:"params"`
	Description string               `json:"description"`
	UpdatedAt   time.Time            `json:"last_updated"`
}

// StatusEntry is a single row of a camera's algorithm status map.
type StatusEntry struct {
	CameraID  string          `json:"camera_id"`
	Algorithm string          `json:"algorithm"`
	Status    AlgorithmStatus `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`

	// RearmDueAt is set once a result was processed and a re-arm scheduled.
	RearmDueAt *time.Time `json:"rearm_due_at,omitempty"`
}

type CommandKind string

const (
	CommandStartAlgorithm CommandKind = "start_algorithm"
	CommandStopAndReset   CommandKind = "stop_and_reset"
	CommandRunAction      CommandKind = "run_action"
)

// WorkerCommand is the envelope published to the worker pool.
type WorkerCommand struct {
	ID        string         `json:"id"`
	Kind      CommandKind    `json:"kind"`
	Name      string         `json:"name"`
	CameraID  string         `json:"camera_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// OutboxMessage Структура для транзакционного outbox
type OutboxMessage struct {
	ID          string      `json:"id"`
	CameraID    string      `json:"camera_id"`
	Kind        CommandKind `json:"kind"`
	Name        string      `json:"name"`
	Payload     []byte      `json:"payload"`
	CreatedAt   time.Time   `json:"created_at"`
	ProcessedAt *time.Time  `json:"processed_at"`
}

// ResultMessage is an algorithm result delivered over the result topic.
type ResultMessage struct {
	CameraID string            `json:"camera_id"`
	Results  map[string]string `json:"results"`
}
