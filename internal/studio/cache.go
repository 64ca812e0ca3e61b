package studio

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/apresai/voicebox/internal/tts"
)

// cacheKeyVersion is bumped whenever the container layout changes.
const cacheKeyVersion = "v1"

type cachedAudio struct {
	audio    []byte
	pcmBytes int
}

// audioCache holds finished containers by request content. A nil
// *audioCache is a valid, always-missing cache.
type audioCache struct {
	*lru.Cache[string, cachedAudio]
}

func newAudioCache(size int) (*audioCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, cachedAudio](size)
	if err != nil {
		return nil, fmt.Errorf("create audio cache: %w", err)
	}
	return &audioCache{Cache: c}, nil
}

func (c *audioCache) get(key string) (cachedAudio, bool) {
	if c == nil {
		return cachedAudio{}, false
	}
	v, ok := c.Get(key)
	if !ok {
		return cachedAudio{}, false
	}
	return cachedAudio{audio: bytes.Clone(v.audio), pcmBytes: v.pcmBytes}, true
}

func (c *audioCache) put(key string, audio []byte, pcmBytes int) {
	if c == nil {
		return
	}
	c.Add(key, cachedAudio{audio: bytes.Clone(audio), pcmBytes: pcmBytes})
}

func (c *audioCache) len() int {
	if c == nil {
		return 0
	}
	return c.Len()
}

// cacheKey hashes everything that determines the audio: the backend,
// the mode, the verbatim input and the resolved voices.
func cacheKey(provider string, req tts.Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", provider, req.Mode())
	switch r := req.(type) {
	case tts.SingleSpeaker:
		fmt.Fprintf(h, "%s\x00", r.Voice)
	case tts.MultiSpeaker:
		for _, s := range r.Speakers {
			fmt.Fprintf(h, "%s=%s\x00", s.Label, s.Voice)
		}
	}
	h.Write([]byte(req.Input()))
	return cacheKeyVersion + "_" + hex.EncodeToString(h.Sum(nil))
}
