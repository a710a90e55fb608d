package rostersync

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/roster"
	"github.com/trezcool/ushauri/core/syncrun"
)

// Trigger actions
const (
	ActionSyncAll      = "sync_all"
	ActionSyncStudents = "sync_students"
	ActionSyncStaff    = "sync_staff"
)

// Request is the sync trigger input.
type Request struct {
	Action       string `json:"action" validate:"required,oneof=sync_all sync_students sync_staff"`
	SyncStudents *bool  `json:"syncStudents"`
	SyncStaff    *bool  `json:"syncStaff"`
}

func (req *Request) Validate(validate *validator.Validate) error {
	req.Action = core.CleanString(req.Action, true /* lower */)
	return validate.Struct(req)
}

// Kinds resolves the entity kinds to sync: organizations always, people per action & flags.
func (req Request) Kinds() []roster.Kind {
	kinds := []roster.Kind{roster.KindInstitution, roster.KindDepartment}
	if (req.Action == ActionSyncAll || req.Action == ActionSyncStaff) && isNotFalse(req.SyncStaff) {
		kinds = append(kinds, roster.KindStaff)
	}
	if (req.Action == ActionSyncAll || req.Action == ActionSyncStudents) && isNotFalse(req.SyncStudents) {
		kinds = append(kinds, roster.KindStudent)
	}
	return kinds
}

func isNotFalse(b *bool) bool { return b == nil || *b }

// Response is the sync trigger output. The users* counters only cover staff & student records.
type Response struct {
	Success        bool                 `json:"success"`
	UsersProcessed int                  `json:"usersProcessed"`
	UsersCreated   int                  `json:"usersCreated"`
	UsersUpdated   int                  `json:"usersUpdated"`
	Errors         []syncrun.ErrorEntry `json:"errors"`
	SyncLogID      string               `json:"syncLogId"`
}

func NewResponse(res Result) Response {
	persons := res.Persons()
	errs := res.Run.Errors
	if errs == nil {
		errs = []syncrun.ErrorEntry{}
	}
	return Response{
		Success:        res.Run.Status != syncrun.StatusFailed,
		UsersProcessed: persons.Processed(),
		UsersCreated:   persons.Created,
		UsersUpdated:   persons.Updated,
		Errors:         errs,
		SyncLogID:      res.Run.ID,
	}
}

// Trigger validates `req`, runs the sync & summarizes it. `triggeredBy` identifies the requester.
func Trigger(ctx context.Context, svc Service, validate *validator.Validate, req Request, triggeredBy string) (Response, error) {
	if err := req.Validate(validate); err != nil {
		return Response{}, err
	}
	res, err := svc.Run(ctx, Options{SyncType: req.Action, Kinds: req.Kinds(), TriggeredBy: triggeredBy})
	if err != nil {
		return Response{}, err
	}
	return NewResponse(res), nil
}
