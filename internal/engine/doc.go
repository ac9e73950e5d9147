// Package engine owns one rendering instance: the presented and pending
// framebuffers, the terminal state threaded between frames, the event
// queue and per-engine metrics.
//
// # Frames
//
// Drawing happens in two steps. SubmitPaint runs a PaintFunc against a
// staging framebuffer seeded from the last presented frame; when the
// function returns nil the staged frame becomes the pending frame, and
// when it fails the pending frame is left untouched. Present diffs the
// pending frame against the presented one and writes the result:
//
//	e, err := engine.New(config.DefaultCreate(), engine.WithBackend(b))
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
//	err = e.SubmitPaint(func(c *engine.Canvas) error {
//		_, err := c.Text(0, 0, "hello", core.DefaultStyle().Bold())
//		return err
//	})
//	out, err := e.Present()
//
// A failed Present commits nothing: the presented frame and terminal
// state stay as they were, so the same pending frame can be retried.
// A failed backend write also forgets the cursor position and style,
// and the next Present redraws the whole screen.
//
// # Thread Safety
//
// An Engine is not safe for concurrent use. Only PostUserEvent may be
// called from other goroutines; the handle package enforces this.
package engine
