package renderer

// A frame is a secondary color buffer readback tagged with the coordinator
// epoch that was current when the secondary last cleared its output.
type frame struct {
	epoch   uint64
	samples uint64
	pixels  []float32
}

// mailbox is a single-slot handoff between a secondary producer and the
// primary consumer. Put overwrites an unconsumed frame so at most one frame
// is ever pending. Consumed pixel slices are handed back to the producer
// for reuse.
type mailbox struct {
	slot chan *frame
	free chan []float32
}

func newMailbox() *mailbox {
	return &mailbox{
		slot: make(chan *frame, 1),
		free: make(chan []float32, 2),
	}
}

// Put stores f replacing any pending frame. It returns true if a pending
// frame was dropped. Put must only be called by the producer.
func (m *mailbox) Put(f *frame) bool {
	dropped := false
	for {
		select {
		case m.slot <- f:
			return dropped
		default:
		}

		select {
		case old := <-m.slot:
			dropped = true
			m.recycle(old.pixels)
		default:
		}
	}
}

// Take returns the pending frame or nil.
func (m *mailbox) Take() *frame {
	select {
	case f := <-m.slot:
		return f
	default:
		return nil
	}
}

// Return a pixel slice for reuse.
func (m *mailbox) recycle(pixels []float32) {
	if pixels == nil {
		return
	}
	select {
	case m.free <- pixels:
	default:
	}
}

// Get a recycled pixel slice or nil if none is available.
func (m *mailbox) buffer() []float32 {
	select {
	case pixels := <-m.free:
		return pixels
	default:
		return nil
	}
}
