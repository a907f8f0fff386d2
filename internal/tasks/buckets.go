package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/metrics"
	"golfpools/worker/internal/models"
)

const staleBucketAge = 60 * 24 * time.Hour

// RefreshBuckets builds the weekly player pool for each tour from the
// current tournament field, upserting players as it goes. A bucket
// already built for the event is left alone.
func (d *Deps) RefreshBuckets(ctx context.Context) error {
	for _, tour := range d.Cfg.Tours {
		if err := d.refreshTourBucket(ctx, tour); err != nil {
			metrics.RecordError("buckets", "refresh")
			log.Error().Err(err).Str("tour", tour).Msg("Failed to refresh bucket, continuing with others")
		}
	}

	if n, err := d.Buckets.DeleteStale(ctx, d.now().Add(-staleBucketAge)); err != nil {
		log.Warn().Err(err).Msg("Failed to prune stale buckets")
	} else if n > 0 {
		log.Info().Int64("deleted", n).Msg("Pruned stale buckets")
	}
	return nil
}

func (d *Deps) refreshTourBucket(ctx context.Context, tour string) error {
	field, err := d.Feed.FieldUpdates(ctx, tour)
	if err != nil {
		return fmt.Errorf("fetch field for %s: %w", tour, err)
	}
	if field == nil || len(field.Players) == 0 {
		log.Info().Str("tour", tour).Msg("No field published, skipping bucket refresh")
		return nil
	}

	name := bucketName(field.EventName, field.EventID, tour)
	exists, err := d.Buckets.ExistsByName(ctx, name)
	if err != nil {
		return fmt.Errorf("check bucket: %w: %w", ErrStoreUnavailable, err)
	}
	if exists {
		log.Debug().Str("bucket", name).Msg("Bucket already built for event")
		return nil
	}

	playerIDs := make([]int, 0, len(field.Players))
	for _, fp := range field.Players {
		first, last := splitFeedName(fp.Name)
		p := &models.Player{
			DGID:    fp.DGID,
			Name:    first,
			Surname: last,
			Odds:    fp.Odds,
			Status:  models.StatusActive,
		}
		if err := d.Players.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert player %d: %w: %w", fp.DGID, ErrStoreUnavailable, err)
		}
		playerIDs = append(playerIDs, p.ID)
	}

	bucket := &models.Bucket{Name: name, Tour: tour, EventID: field.EventID}
	if err := d.Buckets.Create(ctx, bucket, playerIDs); err != nil {
		return fmt.Errorf("create bucket: %w: %w", ErrStoreUnavailable, err)
	}

	log.Info().
		Str("bucket", name).
		Str("tour", tour).
		Int("players", len(playerIDs)).
		Msg("Bucket built from tournament field")
	return nil
}

func bucketName(eventName, eventID, tour string) string {
	return fmt.Sprintf("%s [%s/%s]", eventName, tour, eventID)
}

// splitFeedName splits the feed's "Surname, First" form; a name without
// a comma lands entirely in the surname.
func splitFeedName(full string) (first, last string) {
	if i := strings.Index(full, ","); i >= 0 {
		return strings.TrimSpace(full[i+1:]), strings.TrimSpace(full[:i])
	}
	return "", strings.TrimSpace(full)
}
