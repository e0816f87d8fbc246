package session

import "sync"

// subscriber buffers events so emitters never block on slow consumers.
type subscriber struct {
	out    chan Event
	wake   chan struct{}
	done   chan struct{}
	exited chan struct{}
	once   sync.Once

	mu    sync.Mutex
	queue []Event
}

func newSubscriber() *subscriber {
	return &subscriber{
		out:    make(chan Event),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.exited)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *subscriber) stop() {
	close(s.done)
	<-s.exited
	close(s.out)
}
