package ledger

import "time"

// ActionClass separates the two independent cooldown tracks.
type ActionClass string

const (
	// SubmissionClass covers deposit and withdraw operations.
	SubmissionClass ActionClass = "submission"
	// DisclosureClass covers batch summary requests.
	DisclosureClass ActionClass = "disclosure"
)

// cooldownTracker records, per account and action class, the time of the
// last accepted action and rejects actions arriving within the configured
// cooldown window. Check and record are a single step so an accepted action
// is always recorded. The owning Ledger serializes all access.
type cooldownTracker struct {
	cooldown time.Duration
	last     map[ActionClass]map[Address]time.Time
}

func newCooldownTracker(cooldown time.Duration) *cooldownTracker {
	return &cooldownTracker{
		cooldown: cooldown,
		last: map[ActionClass]map[Address]time.Time{
			SubmissionClass: make(map[Address]time.Time),
			DisclosureClass: make(map[Address]time.Time),
		},
	}
}

// checkAndRecord fails with ErrCooldownActive when the account acted within
// the cooldown window for the class; otherwise it records now as the last
// accepted action time.
func (c *cooldownTracker) checkAndRecord(account Address, class ActionClass, now time.Time) error {
	classLast, ok := c.last[class]
	if !ok {
		classLast = make(map[Address]time.Time)
		c.last[class] = classLast
	}

	if last, acted := classLast[account]; acted && now.Before(last.Add(c.cooldown)) {
		return ErrCooldownActive
	}
	classLast[account] = now
	return nil
}

// setCooldown replaces the window and returns the previous value.
func (c *cooldownTracker) setCooldown(d time.Duration) time.Duration {
	old := c.cooldown
	c.cooldown = d
	return old
}

// lastAction returns the recorded timestamp for the account and class.
func (c *cooldownTracker) lastAction(account Address, class ActionClass) (time.Time, bool) {
	classLast, ok := c.last[class]
	if !ok {
		return time.Time{}, false
	}
	t, acted := classLast[account]
	return t, acted
}
