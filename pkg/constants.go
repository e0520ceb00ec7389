package shared

const (
	ProjectID = "pacelap-project" // Can be overridden by env var in main if needed

	TopicSyncActivity = "topic-sync-activity"
	TopicSyncAthlete  = "topic-sync-athlete"
	TopicRecalculate  = "topic-recalculate"

	CollectionAthletes      = "athletes"
	CollectionActivities    = "activities"
	CollectionChallenges    = "challenges"
	CollectionSyncs         = "syncs"
	CollectionSubscriptions = "webhook_subscriptions"

	// AlwaysRecalculate is the sentinel sync-job ID that bypasses completion
	// gating: aggregation runs unconditionally and no job record is touched.
	AlwaysRecalculate = "always"
)

// Event subjects and types carried by the sync event envelopes. Consumers
// filter on subject+type because every push endpoint receives the same
// envelope shape regardless of topic.
const (
	SyncActivitySubject = "SyncActivity"
	SyncActivityType    = "activitySync"

	SyncAthleteSubject = "SyncAthleteActivities"
	SyncAthleteType    = "athleteSync"

	RecalculateSubject = "RecalculateChallenge"
	RecalculateType    = "recalculate"

	EventDataVersion = "1.0"
)
