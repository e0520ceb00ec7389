// Package firestore provides typed access to the Firestore collections
// backing the sync pipeline.
package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Athletes is keyed by the Strava athlete ID in decimal form.
func (c *Client) Athletes() *Collection[types.Athlete] {
	return &Collection[types.Athlete]{
		Ref:           c.fs.Collection(shared.CollectionAthletes),
		ToFirestore:   AthleteToFirestore,
		FromFirestore: FirestoreToAthlete,
	}
}

// Activities is a flat collection keyed by the Strava activity ID; the
// athlete_id field scopes per-athlete queries.
func (c *Client) Activities() *Collection[types.Activity] {
	return &Collection[types.Activity]{
		Ref:           c.fs.Collection(shared.CollectionActivities),
		ToFirestore:   ActivityToFirestore,
		FromFirestore: FirestoreToActivity,
	}
}

func (c *Client) Challenges() *Collection[types.Challenge] {
	return &Collection[types.Challenge]{
		Ref:           c.fs.Collection(shared.CollectionChallenges),
		ToFirestore:   ChallengeToFirestore,
		FromFirestore: FirestoreToChallenge,
	}
}

// Syncs holds fan-out job records; documents are short-lived and deleted
// once the job completes.
func (c *Client) Syncs() *Collection[types.Sync] {
	return &Collection[types.Sync]{
		Ref:           c.fs.Collection(shared.CollectionSyncs),
		ToFirestore:   SyncToFirestore,
		FromFirestore: FirestoreToSync,
	}
}

func (c *Client) Subscriptions() *Collection[types.WebhookSubscription] {
	return &Collection[types.WebhookSubscription]{
		Ref:           c.fs.Collection(shared.CollectionSubscriptions),
		ToFirestore:   SubscriptionToFirestore,
		FromFirestore: FirestoreToSubscription,
	}
}
