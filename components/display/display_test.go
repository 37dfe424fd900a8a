package display

import (
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Show("homing...")
	r.Show("open & watching", "distance: 1500mm")

	msgs := r.Messages()
	test.That(t, len(msgs), test.ShouldEqual, 2)
	test.That(t, msgs[0], test.ShouldResemble, []string{"homing..."})
	test.That(t, msgs[1], test.ShouldResemble, []string{"open & watching", "distance: 1500mm"})
}

func TestDebouncedCoalesces(t *testing.T) {
	r := &Recorder{}
	d := Debounced(r, 10*time.Millisecond)

	d.Show("one")
	d.Show("two")
	d.Show("three")

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		msgs := r.Messages()
		test.That(tb, len(msgs), test.ShouldEqual, 1)
		if len(msgs) != 1 {
			return
		}
		test.That(tb, msgs[0], test.ShouldResemble, []string{"three"})
	})
}
