package dispatcher

import (
	"context"
	"sync"
)

// Event carries one state update from an entity to listeners.
type Event struct {
	Source string
	Data   any
}

type Listener struct {
	ch        chan *Event
	closeOnce sync.Once
	closeFunc func()
}

func (l *Listener) Receive() <-chan *Event {
	return l.ch
}

// Close deregisters the listener; its channel is closed by the dispatcher.
func (l *Listener) Close() {
	l.closeOnce.Do(l.closeFunc)
}

// Dispatcher fans events out to registered listeners. A listener that cannot
// keep up is dropped and its channel closed.
type Dispatcher struct {
	ctx          context.Context
	listeners    map[*Listener]struct{}
	broadcast    chan *Event
	registerCh   chan *Listener
	deregisterCh chan *Listener
	done         chan struct{}
}

func New(ctx context.Context) *Dispatcher {
	d := &Dispatcher{
		ctx:          ctx,
		broadcast:    make(chan *Event, 64),
		registerCh:   make(chan *Listener),
		deregisterCh: make(chan *Listener),
		listeners:    make(map[*Listener]struct{}),
		done:         make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) NewListener() *Listener {
	l := &Listener{
		ch: make(chan *Event, 32),
	}
	l.closeFunc = func() {
		select {
		case d.deregisterCh <- l:
		case <-d.done:
		}
	}

	select {
	case d.registerCh <- l:
	case <-d.done:
		close(l.ch)
	}
	return l
}

// BroadcastEvent queues an event; it is dropped once the dispatcher stopped.
func (d *Dispatcher) BroadcastEvent(source string, data any) {
	select {
	case d.broadcast <- &Event{Source: source, Data: data}:
	case <-d.done:
	}
}

func (d *Dispatcher) run() {
	defer func() {
		for listener := range d.listeners {
			close(listener.ch)
		}
		close(d.done)
	}()

	for {
		select {
		case listener := <-d.registerCh:
			d.listeners[listener] = struct{}{}
		case listener := <-d.deregisterCh:
			if _, ok := d.listeners[listener]; ok {
				delete(d.listeners, listener)
				close(listener.ch)
			}
		case message := <-d.broadcast:
			for listener := range d.listeners {
				select {
				case listener.ch <- message:
				default:
					close(listener.ch)
					delete(d.listeners, listener)
				}
			}
		case <-d.ctx.Done():
			return
		}
	}
}
