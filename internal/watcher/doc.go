// Package watcher triggers index rebuilds when transcripts change.
//
// A HybridWatcher follows the projects directory with fsnotify, falling back
// to polling where inotify is unavailable (network mounts, some containers).
// Only transcript files are reported. Bursts of writes from an active session
// are coalesced by a Debouncer, and a Trigger turns the resulting batches into
// rebuild requests no more often than its minimum interval allows.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go w.Start(ctx, projectsDir)
//
//	trigger := watcher.NewTrigger(coordinator, time.Minute)
//	coordinator.OnComplete(trigger.JobDone)
//	return trigger.Run(ctx, w.Events())
package watcher
