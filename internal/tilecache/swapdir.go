package tilecache

import (
	"fmt"
	"os"
	"time"
)

// SwapDir atomically replaces dst with src: src is renamed onto dst's
// path, and the directory that previously lived at dst (if any) is
// returned for the caller to remove once it's sure nothing else still
// references it. This is how a "rebuild" seed run (build into a fresh
// directory, then swap it in) avoids ever serving a half-built cache
// level.
//
// Grounded on mapproxy.core.utils.swap_dir/_force_rename_dir: rename the
// old dst out of the way first (dst -> dst+".tmp-swap-<pid>"), then rename
// src into dst's place, retrying each rename on any error with backoff
// since a concurrent reader can transiently hold a directory handle open on
// some platforms.
func SwapDir(src, dst string) (oldDst string, err error) {
	if _, statErr := os.Stat(dst); statErr == nil {
		oldDst = fmt.Sprintf("%s.tmp-swap-%d", dst, os.Getpid())
		if err := renameWithRetry(dst, oldDst); err != nil {
			return "", fmt.Errorf("tilecache: move aside %s: %w", dst, err)
		}
	}
	if err := renameWithRetry(src, dst); err != nil {
		return oldDst, fmt.Errorf("tilecache: swap in %s: %w", src, err)
	}
	return oldDst, nil
}

// renameWithRetry retries os.Rename up to 10 times with exponential
// backoff, whatever the error, matching _force_rename_dir's tolerance for
// a transient failure caused by a concurrent filesystem walker.
func renameWithRetry(src, dst string) error {
	backoff := 10 * time.Millisecond
	var err error
	for attempt := 0; attempt < 10; attempt++ {
		if err = os.Rename(src, dst); err == nil {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}
