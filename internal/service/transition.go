package service

import (
	"fmt"

	"github.com/shiva/moveops/internal/model"
)

// Trigger is an event that may move a job to another status.
type Trigger string

const (
	TriggerDepositPaid  Trigger = "deposit_paid"
	TriggerAssignDriver Trigger = "assign_driver"
	TriggerAdvance      Trigger = "advance"
	TriggerComplete     Trigger = "complete"
	TriggerFinalPaid    Trigger = "final_paid"
	TriggerCancel       Trigger = "cancel"
)

type transitionKey struct {
	from    model.JobStatus
	trigger Trigger
}

// transitions is the complete set of legal job status changes. Payment
// failures and refunds are absent on purpose: they never touch job status.
var transitions = map[transitionKey]model.JobStatus{
	{model.JobPending, TriggerDepositPaid}: model.JobConfirmed,

	{model.JobConfirmed, TriggerAssignDriver}: model.JobScheduled,
	{model.JobScheduled, TriggerAssignDriver}: model.JobScheduled,

	{model.JobScheduled, TriggerAdvance}:       model.JobHeadingToPickup,
	{model.JobHeadingToPickup, TriggerAdvance}: model.JobAtPickup,
	{model.JobAtPickup, TriggerAdvance}:        model.JobLoading,
	{model.JobLoading, TriggerAdvance}:         model.JobInTransit,
	{model.JobInTransit, TriggerAdvance}:       model.JobAtDropoff,
	{model.JobAtDropoff, TriggerAdvance}:       model.JobUnloading,

	{model.JobUnloading, TriggerComplete}: model.JobCompleted,

	{model.JobCompleted, TriggerFinalPaid}: model.JobPaid,

	{model.JobPending, TriggerCancel}:   model.JobCancelled,
	{model.JobConfirmed, TriggerCancel}: model.JobCancelled,
	{model.JobScheduled, TriggerCancel}: model.JobCancelled,
}

// Transition returns the status a job in from moves to on trigger, or
// ErrIllegalTransition. It is the only place job status changes are decided.
func Transition(from model.JobStatus, trigger Trigger) (model.JobStatus, error) {
	to, ok := transitions[transitionKey{from: from, trigger: trigger}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, trigger, from)
	}
	return to, nil
}

// TriggerFor maps a requested target status from a manual update to the
// trigger that would produce it. Statuses only reachable through payments or
// driver assignment have no manual trigger.
func TriggerFor(target model.JobStatus) (Trigger, bool) {
	switch target {
	case model.JobHeadingToPickup, model.JobAtPickup, model.JobLoading,
		model.JobInTransit, model.JobAtDropoff, model.JobUnloading:
		return TriggerAdvance, true
	case model.JobCompleted:
		return TriggerComplete, true
	case model.JobCancelled:
		return TriggerCancel, true
	}
	return "", false
}

// applyTransition moves job through trigger and returns the history entry
// to record. The result must equal want when want is non-empty.
func applyTransition(job *model.Job, trigger Trigger, want model.JobStatus, actor, notes string) (*model.StatusChange, error) {
	from := job.Status
	to, err := Transition(from, trigger)
	if err != nil {
		return nil, err
	}
	if want != "" && to != want {
		return nil, fmt.Errorf("%w: %s leads to %s, not %s", ErrIllegalTransition, from, to, want)
	}
	job.Status = to
	return &model.StatusChange{From: from, To: to, ChangedBy: actor, Notes: notes}, nil
}
