// Package alert implements the alarm lifecycle and the in-memory registry of
// live alerts.
//
// An Alert moves between the normal and abnormal process phases and carries
// acknowledged and silenced flags; the alarm state is derived from those and
// never set directly. Every mutation emits a notification delta through the
// event bus under notifications.[<path>.]<id>, tagged with the alert's
// sourceRef (default alertsApi):
//
//	method  []               when the alarm state is inactive
//	        [visual]         when silenced
//	        [visual, sound]  otherwise
//	state   normal when inactive, else the priority
//
// Silence applies only to an abnormal alarm-priority alert and lasts 30
// seconds by default. Every mutator cancels the pending silence and
// escalation timers first, and a timer that fires after being replaced does
// nothing, so a stale timer can never undo a newer state.
//
// Manager keeps insertion order so List's top filter is deterministic. Delete
// refuses an abnormal alert with ErrAlertActive. AckAll and SilenceAll call
// each alert's own Ack and Silence.
package alert
