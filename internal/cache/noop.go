package cache

import "context"

// NoopCache satisfies the invalidation contract when Redis is absent.
// Readers then serve slightly staler views until their TTLs expire.
type NoopCache struct{}

func (NoopCache) InvalidateScores(context.Context, string)     {}
func (NoopCache) InvalidateLeaderboard(context.Context, int)   {}
func (NoopCache) PublishScoresChanged(context.Context, string) {}
