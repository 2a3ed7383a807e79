// Package supply implements the admission-control engine of spec.md §4.G:
// the weighted expertise gate, removal, promotion, activity decay,
// auto-expansion and waitlist processing. New relative to the teacher (it
// has no admission-control analogue); built in the idiom of
// internal/app/services/gasbank's transactional, row-locked Service shape,
// since that is the one teacher service that reads a balance-like row
// FOR UPDATE before deciding an outcome.
package supply

import (
	"context"
	"sort"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	core "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/core/service"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domnotification "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/notification"
	domsupply "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/supply"
)

// DecayWindowHalf and DecayWindowZero are the activity-decay thresholds of
// §4.G: effective weight halves past 14 days of inactivity and zeroes past
// 30 days.
const (
	DecayWindowHalf = 14 * 24 * time.Hour
	DecayWindowZero = 30 * 24 * time.Hour
)

// AutoExpandLatencyThreshold and AutoExpandMinSamples gate the
// auto-expansion rule: P95 acceptance latency over the threshold, with at
// least this many samples to avoid noise-driven expansion.
const (
	AutoExpandLatencyThreshold = 6 * time.Hour
	AutoExpandMinSamples       = 10
	AutoExpandPct              = 10
	AutoExpandDuration         = 7 * 24 * time.Hour
	WaitlistInviteWindow       = 48 * time.Hour
)

// changeLogBuffer bounds the async change-log channel; a full buffer means
// the drain goroutine is falling behind, so new entries are dropped (with
// a warning) rather than applying backpressure to admission decisions.
const changeLogBuffer = 1024

// Service implements the supply-control engine.
type Service struct {
	runner        storage.TxRunner
	supply        storage.SupplyStore
	notifications storage.NotificationStore
	log           *logging.Logger

	changeLog chan domsupply.ChangeLogEntry
}

// New constructs a supply Service.
func New(runner storage.TxRunner, supply storage.SupplyStore, notifications storage.NotificationStore, log *logging.Logger) *Service {
	return &Service{
		runner:        runner,
		supply:        supply,
		notifications: notifications,
		log:           log,
		changeLog:     make(chan domsupply.ChangeLogEntry, changeLogBuffer),
	}
}

// Run drains the change-log channel until ctx is cancelled. The admission
// gate never waits on this: Gate only ever does a non-blocking channel
// send, so a slow or stalled drain loop can't add latency to a gate
// decision (§4.G: "non-blocking, best-effort").
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-s.changeLog:
			s.supply.AppendChangeLog(ctx, s.runner.Queryer(), entry)
		}
	}
}

// Descriptor advertises the service's placement and capabilities.
func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "supply",
		Domain:       "marketplace",
		Layer:        core.LayerEngine,
		Capabilities: []string{"gate", "remove", "promote", "decay", "auto_expand", "process_waitlist"},
	}
}

// Gate runs the 8-step admission sequence of spec.md §4.G inside a single
// transaction, logging the outcome to the change ledger regardless of
// result (best-effort, never blocks the caller's result).
func (s *Service) Gate(ctx context.Context, userID, expertiseCode, zoneID string, slotWeight float64, now time.Time) (domsupply.AdmissionResult, string, error) {
	var (
		result domsupply.AdmissionResult
		reason string
	)
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		locked, err := s.supply.HasFutureLock(ctx, q, userID, now)
		if err != nil {
			return err
		}
		if locked {
			result, reason = domsupply.AdmissionRejectedLocked, "active expertise under 30-day lock"
			return s.logOutcome(ctx, q, userID, expertiseCode, zoneID, result, reason)
		}

		count, err := s.supply.GetActiveExpertiseCount(ctx, q, userID)
		if err != nil {
			return err
		}
		if count >= 2 {
			result, reason = domsupply.AdmissionRejectedMax, "user already holds two active expertise rows"
			return s.logOutcome(ctx, q, userID, expertiseCode, zoneID, result, reason)
		}

		if _, ok, err := s.supply.GetActiveExpertise(ctx, q, userID, expertiseCode); err != nil {
			return err
		} else if ok {
			result, reason = domsupply.AdmissionRejectedDuplicate, "active row already exists for this expertise"
			return s.logOutcome(ctx, q, userID, expertiseCode, zoneID, result, reason)
		}

		if inactive, ok, err := s.supply.GetLatestInactiveExpertise(ctx, q, userID, expertiseCode); err != nil {
			return err
		} else if ok {
			if now.Sub(inactive.RemovedAt) < domsupply.DecayCooldownDays*24*time.Hour {
				result, reason = domsupply.AdmissionRejectedCooldown, "inactive row removed less than the cooldown ago"
				return s.logOutcome(ctx, q, userID, expertiseCode, zoneID, result, reason)
			}
			if err := s.supply.DeleteExpertise(ctx, q, inactive.ID); err != nil {
				return err
			}
		}

		capacity, err := s.supply.GetCapacityForUpdate(ctx, q, expertiseCode, zoneID)
		if err != nil {
			return err
		}
		effectiveMax := capacity.EffectiveMax(now)
		gate1 := capacity.CurrentWeight+slotWeight <= effectiveMax
		gate2 := capacity.ActiveHustlers == 0 || capacity.LiquidityRatio >= capacity.MinTaskToSupplyRatio

		if !gate1 || !gate2 {
			waitlistReason := domsupply.GateReasonThroughput
			if !gate1 {
				waitlistReason = domsupply.GateReasonCapacity
			}
			existing, err := s.supply.ListWaitlistFIFO(ctx, q, expertiseCode, zoneID)
			if err != nil {
				return err
			}
			entry := domsupply.WaitlistEntry{
				UserID:        userID,
				ExpertiseCode: expertiseCode,
				ZoneID:        zoneID,
				Slot:          domsupply.SlotPrimary,
				Position:      len(existing) + 1,
				Reason:        waitlistReason,
			}
			if _, err := s.supply.InsertWaitlist(ctx, q, entry); err != nil {
				return err
			}
			result, reason = domsupply.AdmissionWaitlisted, string(waitlistReason)
			return s.logOutcome(ctx, q, userID, expertiseCode, zoneID, result, reason)
		}

		ue := domsupply.UserExpertise{
			UserID:          userID,
			ExpertiseCode:   expertiseCode,
			ZoneID:          zoneID,
			Slot:            domsupply.SlotPrimary,
			SlotWeight:      slotWeight,
			EffectiveWeight: slotWeight,
			Active:          true,
			LockedUntil:     now.Add(30 * 24 * time.Hour),
		}
		if _, err := s.supply.InsertExpertise(ctx, q, ue); err != nil {
			return err
		}
		capacity.CurrentWeight += slotWeight
		capacity.ActiveHustlers++
		if _, err := s.supply.UpdateCapacity(ctx, q, capacity, capacity.Version); err != nil {
			return err
		}
		result, reason = domsupply.AdmissionAdmitted, ""
		return s.logOutcome(ctx, q, userID, expertiseCode, zoneID, result, reason)
	})
	return result, reason, err
}

// logOutcome hands the change ledger row to the buffered channel Run
// drains, so a log-write (or a full buffer) never adds latency to the
// gate decision itself (spec.md §4.G: "non-blocking, best-effort").
func (s *Service) logOutcome(ctx context.Context, q storage.Queryer, userID, expertiseCode, zoneID string, result domsupply.AdmissionResult, reason string) error {
	entry := domsupply.ChangeLogEntry{
		UserID:        userID,
		ExpertiseCode: expertiseCode,
		ZoneID:        zoneID,
		Outcome:       string(result),
		Reason:        reason,
	}
	select {
	case s.changeLog <- entry:
	default:
		s.log.WithFields(map[string]interface{}{"user_id": userID, "expertise_code": expertiseCode}).Warn("supply: change log buffer full, dropping entry")
	}
	return nil
}

// Remove soft-deletes a user_expertise row and decrements capacity by its
// effective (not nominal) weight.
func (s *Service) Remove(ctx context.Context, expertiseID string, now time.Time) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		all, err := s.supply.ListAllExpertise(ctx, q)
		if err != nil {
			return err
		}
		var target *domsupply.UserExpertise
		for i := range all {
			if all[i].ID == expertiseID {
				target = &all[i]
				break
			}
		}
		if target == nil {
			return apperrors.NotFound("user_expertise", expertiseID)
		}
		capacity, err := s.supply.GetCapacityForUpdate(ctx, q, target.ExpertiseCode, target.ZoneID)
		if err != nil {
			return err
		}
		capacity.CurrentWeight -= target.EffectiveWeight
		if capacity.CurrentWeight < 0 {
			capacity.CurrentWeight = 0
		}
		capacity.ActiveHustlers--
		if capacity.ActiveHustlers < 0 {
			capacity.ActiveHustlers = 0
		}
		if _, err := s.supply.UpdateCapacity(ctx, q, capacity, capacity.Version); err != nil {
			return err
		}
		target.Active = false
		target.RemovedAt = now
		_, err = s.supply.InsertExpertise(ctx, q, *target)
		return err
	})
}

// Promote swaps a secondary row to primary weight (and vice versa for the
// user's other active row, if any) and reapplies a fresh 30-day lock to
// both.
func (s *Service) Promote(ctx context.Context, userID, expertiseCode string, now time.Time) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		ue, ok, err := s.supply.GetActiveExpertise(ctx, q, userID, expertiseCode)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound("user_expertise", expertiseCode)
		}
		if ue.Slot == domsupply.SlotPrimary {
			return nil
		}
		ue.Slot = domsupply.SlotPrimary
		ue.SlotWeight = domsupply.PrimaryWeight
		ue.EffectiveWeight = domsupply.PrimaryWeight
		ue.LockedUntil = now.Add(30 * 24 * time.Hour)
		all, err := s.supply.ListAllExpertise(ctx, q)
		if err != nil {
			return err
		}
		for _, other := range all {
			if other.UserID == userID && other.Active && other.ID != ue.ID {
				other.Slot, other.SlotWeight, other.EffectiveWeight = domsupply.SlotSecondary, domsupply.SecondaryWeight, domsupply.SecondaryWeight
				other.LockedUntil = ue.LockedUntil
				if _, err := s.supply.InsertExpertise(ctx, q, other); err != nil {
					return err
				}
			}
		}
		_, err = s.supply.InsertExpertise(ctx, q, ue)
		return err
	})
}

// Decay recomputes effective_weight for every active row per the activity
// thresholds of §4.G, run as a daily batch job.
func (s *Service) Decay(ctx context.Context, now time.Time) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		rows, err := s.supply.ListAllExpertise(ctx, q)
		if err != nil {
			return err
		}
		for _, ue := range rows {
			if !ue.Active {
				continue
			}
			reference := ue.LastAcceptedAt
			if reference.IsZero() {
				reference = ue.CreatedAt
			}
			age := now.Sub(reference)
			var effective float64
			switch {
			case age >= DecayWindowZero:
				effective = 0
			case age >= DecayWindowHalf:
				effective = ue.SlotWeight * 0.5
			default:
				effective = ue.SlotWeight
			}
			if effective == ue.EffectiveWeight {
				continue
			}
			ue.EffectiveWeight = effective
			if _, err := s.supply.InsertExpertise(ctx, q, ue); err != nil {
				return err
			}
		}
		return nil
	})
}

// AcceptanceSample is one observed accepted_at-created_at latency, gathered
// by the caller from task history; this package has no task-store
// dependency of its own.
type AcceptanceSample struct {
	ExpertiseCode string
	ZoneID        string
	Latency       time.Duration
}

// AutoExpand applies §4.G's auto-expansion rule per (expertise, zone): if
// the P95 acceptance latency over the sample exceeds the threshold and the
// sample size clears the noise guard, set a temporary capacity bump.
func (s *Service) AutoExpand(ctx context.Context, samples []AcceptanceSample, now time.Time) error {
	byKey := map[[2]string][]time.Duration{}
	for _, sample := range samples {
		key := [2]string{sample.ExpertiseCode, sample.ZoneID}
		byKey[key] = append(byKey[key], sample.Latency)
	}
	return s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		for key, latencies := range byKey {
			if len(latencies) < AutoExpandMinSamples {
				continue
			}
			if p95(latencies) <= AutoExpandLatencyThreshold {
				continue
			}
			capacity, err := s.supply.GetCapacityForUpdate(ctx, q, key[0], key[1])
			if err != nil {
				return err
			}
			capacity.AutoExpandPct = AutoExpandPct
			capacity.AutoExpandExpiresAt = now.Add(AutoExpandDuration)
			if _, err := s.supply.UpdateCapacity(ctx, q, capacity, capacity.Version); err != nil {
				return err
			}
		}
		return nil
	})
}

func p95(latencies []time.Duration) time.Duration {
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted))*0.95) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ProcessWaitlist walks each (expertise, zone)'s FIFO waitlist after a
// recompute, inviting entries that now fit within free weight and ratio,
// cancelling any whose user would now exceed the max-two rule, and
// bulk-expiring invitations past their window.
func (s *Service) ProcessWaitlist(ctx context.Context, expertiseCode, zoneID string, now time.Time) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		capacity, err := s.supply.GetCapacityForUpdate(ctx, q, expertiseCode, zoneID)
		if err != nil {
			return err
		}
		entries, err := s.supply.ListWaitlistFIFO(ctx, q, expertiseCode, zoneID)
		if err != nil {
			return err
		}
		invitedAny := false
		for _, entry := range entries {
			if entry.Cancelled || !entry.InvitedAt.IsZero() {
				continue // already invited (or expired, handled by ExpireInvitations)
			}

			count, err := s.supply.GetActiveExpertiseCount(ctx, q, entry.UserID)
			if err != nil {
				return err
			}
			if count >= 2 {
				entry.Cancelled = true
				if _, err := s.supply.UpdateWaitlist(ctx, q, entry); err != nil {
					return err
				}
				continue
			}

			effectiveMax := capacity.EffectiveMax(now)
			freeWeight := effectiveMax - capacity.CurrentWeight
			ratioOK := capacity.ActiveHustlers == 0 || capacity.LiquidityRatio >= capacity.MinTaskToSupplyRatio
			if freeWeight <= 0 || !ratioOK {
				break // FIFO order: stop at the first entry that still doesn't fit
			}

			entry.InvitedAt = now
			entry.InviteExpiresAt = now.Add(WaitlistInviteWindow)
			if _, err := s.supply.UpdateWaitlist(ctx, q, entry); err != nil {
				return err
			}
			if _, err := s.notifications.InsertNotification(ctx, q, domnotification.Notification{
				UserID:   entry.UserID,
				Category: domnotification.CategorySupplyInvite,
				Priority: domnotification.PriorityMedium,
				Title:    "A supply slot opened up",
				Body:     "You've been invited to claim an expertise slot. The invite expires in 48 hours.",
				Channels: domnotification.ChannelsFor(domnotification.CategorySupplyInvite),
			}); err != nil {
				return err
			}
			capacity.CurrentWeight += slotWeight(entry.Slot)
			invitedAny = true
		}
		if !invitedAny {
			return nil
		}
		_, err = s.supply.UpdateCapacity(ctx, q, capacity, capacity.Version)
		return err
	})
}

// slotWeight returns the nominal weight for a Slot value.
func slotWeight(sl domsupply.Slot) float64 {
	if sl == domsupply.SlotPrimary {
		return domsupply.PrimaryWeight
	}
	return domsupply.SecondaryWeight
}

// ExpireInvitations bulk-marks waitlist entries whose invite window has
// elapsed as cancelled.
func (s *Service) ExpireInvitations(ctx context.Context, expertiseCode, zoneID string, now time.Time) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		entries, err := s.supply.ListWaitlistFIFO(ctx, q, expertiseCode, zoneID)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Cancelled || entry.InvitedAt.IsZero() || now.Before(entry.InviteExpiresAt) {
				continue
			}
			entry.Cancelled = true
			if _, err := s.supply.UpdateWaitlist(ctx, q, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecomputeAll runs the daily decay pass followed by waitlist processing
// and invitation expiry for every known (expertise, zone) capacity row;
// grounded in the per-expertise/zone shape the other three operations
// already share, since none of them has a "do it for everything" mode of
// its own. Driven by cmd/appserver's periodic job and cmd/admincli's
// recalculate-capacity subcommand.
func (s *Service) RecomputeAll(ctx context.Context, now time.Time) error {
	if err := s.Decay(ctx, now); err != nil {
		return err
	}
	var capacities []domsupply.Capacity
	if err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		var err error
		capacities, err = s.supply.ListAllCapacity(ctx, q)
		return err
	}); err != nil {
		return err
	}
	for _, c := range capacities {
		if err := s.ProcessWaitlist(ctx, c.ExpertiseCode, c.ZoneID, now); err != nil {
			return err
		}
		if err := s.ExpireInvitations(ctx, c.ExpertiseCode, c.ZoneID, now); err != nil {
			return err
		}
	}
	return nil
}
