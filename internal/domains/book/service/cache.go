package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Every cached view lives under the current generation. A mutation bumps the
// generation, so a read that loaded before the bump can only fill a key that
// no later read looks up.
const cacheGenerationKey = "books:gen"

func generationPrefix(gen int64) string {
	return fmt.Sprintf("books:%d:", gen)
}

func listCacheKey(gen int64) string {
	return generationPrefix(gen) + "list"
}

func bookCacheKey(gen int64, id string) string {
	return generationPrefix(gen) + "book:" + id
}

func topRatedCacheKey(gen int64, limit int) string {
	return fmt.Sprintf("%stop:%d", generationPrefix(gen), limit)
}

// cacheGeneration must be read before the repository. ok=false bypasses the
// cache for this read.
func (s *BookService) cacheGeneration(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}

	gen, err := s.cache.Counter(ctx, cacheGenerationKey)
	if err != nil {
		log.Warn().Err(err).Msg("Cache generation read failed")
		return 0, false
	}
	return gen, true
}

// cacheGet reports a hit. Cache errors degrade to a miss.
func (s *BookService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return false
	}
	return found
}

func (s *BookService) cacheSet(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.opts.CacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// invalidate retires every cached view after a change to book id.
func (s *BookService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}

	gen, err := s.cache.Incr(ctx, cacheGenerationKey)
	if err != nil {
		log.Warn().Err(err).Str("book_id", id).Msg("Cache invalidation failed")
		return
	}

	// old entries would expire on their own; drop them to free memory
	if err := s.cache.DeletePattern(ctx, generationPrefix(gen-1)+"*"); err != nil {
		log.Warn().Err(err).Int64("generation", gen-1).Msg("Stale cache cleanup failed")
	}
}
