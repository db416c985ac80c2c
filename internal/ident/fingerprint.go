// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package ident

import (
	"crypto"
	_ "crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/habitat-sh/hab-auto-build/internal/cache"
	"github.com/habitat-sh/hab-auto-build/internal/hashext"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest, used for both source_fingerprint and
// artifact_fingerprint.
type Digest [32]byte

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range d {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}

type fileEntry struct {
	relPath string
	mode    fs.FileMode
	target  string // symlink target, when mode&ModeSymlink != 0
	absPath string
}

// SourceFingerprint computes a BLAKE3 digest over an ordered, ignore-filtered
// traversal of contextDir: for each file (sorted
// lexicographically), hash (relative_path, mode, content) with
// length-prefixes; symlinks hash their target string rather than resolved
// content. The result is independent of the OS walk order: entries are
// collected first, then sorted by relative path before hashing.
func SourceFingerprint(contextDir string) (Digest, error) {
	matcher, err := ignoreMatcher(contextDir)
	if err != nil {
		return Digest{}, errors.Wrap(err, "building ignore matcher")
	}
	var entries []fileEntry
	err = filepath.WalkDir(contextDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(contextDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")
		if matcher.Match(segments, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entry := fileEntry{relPath: filepath.ToSlash(rel), mode: info.Mode(), absPath: path}
		if info.Mode()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			entry.target = target
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return Digest{}, errors.Wrap(err, "walking context directory")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })

	h := blake3.New()
	for _, e := range entries {
		if err := writeLengthPrefixed(h, []byte(e.relPath)); err != nil {
			return Digest{}, err
		}
		var modeBuf [4]byte
		binary.BigEndian.PutUint32(modeBuf[:], uint32(e.mode))
		h.Write(modeBuf[:])
		if e.mode&fs.ModeSymlink != 0 {
			if err := writeLengthPrefixed(h, []byte(e.target)); err != nil {
				return Digest{}, err
			}
			continue
		}
		content, err := os.Open(e.absPath)
		if err != nil {
			return Digest{}, errors.Wrapf(err, "opening %s", e.relPath)
		}
		_, err = io.Copy(h, content)
		content.Close()
		if err != nil {
			return Digest{}, errors.Wrapf(err, "hashing %s", e.relPath)
		}
	}
	var out Digest
	h.Sum(out[:0])
	return out, nil
}

// FingerprintCache memoizes SourceFingerprint per context directory,
// coalescing concurrent requests for the same plan context into a single
// traversal. Backed by internal/cache.CoalescingMemoryCache, shared across
// the bounded worker pool that concurrently extracts and fingerprints plans
// within one invocation; fingerprinting is embarrassingly parallel over
// plans.
type FingerprintCache struct {
	c *cache.CoalescingMemoryCache
}

// NewFingerprintCache constructs an empty FingerprintCache.
func NewFingerprintCache() *FingerprintCache {
	return &FingerprintCache{c: &cache.CoalescingMemoryCache{}}
}

// Get returns contextDir's source fingerprint, computing and caching it on
// first request. Concurrent Get calls for the same contextDir coalesce into
// one SourceFingerprint call.
func (fc *FingerprintCache) Get(contextDir string) (Digest, error) {
	v, err := fc.c.GetOrSet(contextDir, func() (any, error) {
		return SourceFingerprint(contextDir)
	})
	if err != nil {
		return Digest{}, err
	}
	return v.(Digest), nil
}

func writeLengthPrefixed(h io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := h.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := h.Write(b)
	return err
}

func ignoreMatcher(contextDir string) (gitignore.Matcher, error) {
	fsys := osfs.New(contextDir)
	patterns, err := gitignore.ReadPatterns(fsys, nil)
	if err != nil {
		return nil, err
	}
	return gitignore.NewMatcher(patterns), nil
}

// EnvDigest combines a set of environment key/value pairs into a stable
// digest using internal/hashext's MultiHash (SHA-256 + SHA-512 combined),
// giving artifact_fingerprint an environment component that is cheap to
// recompute and collision-resistant independent of BLAKE3's own properties.
func EnvDigest(env map[string]string) []byte {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	mh := hashext.NewMultiHash(crypto.SHA256, crypto.SHA512)
	for _, k := range keys {
		mh.Write([]byte(k))
		mh.Write([]byte{0})
		mh.Write([]byte(env[k]))
		mh.Write([]byte{0})
	}
	return mh.Sum(nil)
}

// ResolvedDep pairs a dependency's identifier with the artifact fingerprint
// it resolved to at plan time, used to build artifact_fingerprint's input.
type ResolvedDep struct {
	Ident  string
	Digest Digest
}

type artifactEncoding struct {
	Ident        string   `json:"ident"`
	ResolvedDeps []string `json:"resolved_deps"`
	EnvDigest    string   `json:"env_digest"`
}

// ArtifactFingerprint computes a BLAKE3 digest over the canonical JSON
// encoding of {ident, sorted resolved_dep_hashes, env_digest}.
// resolvedDeps need not be pre-sorted; they are sorted here by
// "ident:digest" to keep the encoding deterministic regardless of graph
// traversal order.
func ArtifactFingerprint(planIdent string, resolvedDeps []ResolvedDep, envDigest []byte) (Digest, error) {
	pairs := make([]string, len(resolvedDeps))
	for i, d := range resolvedDeps {
		pairs[i] = d.Ident + ":" + d.Digest.String()
	}
	sort.Strings(pairs)
	enc := artifactEncoding{
		Ident:        planIdent,
		ResolvedDeps: pairs,
		EnvDigest:    hexEncode(envDigest),
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return Digest{}, errors.Wrap(err, "encoding artifact fingerprint input")
	}
	var out Digest
	sum := blake3.Sum256(data)
	copy(out[:], sum[:])
	return out, nil
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}
