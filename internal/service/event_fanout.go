package service

import (
	"context"
	"errors"

	"fund-directory/internal/model"
	"fund-directory/internal/ports"
)

// EventFanout : раздаёт событие всем настроенным получателям
type EventFanout struct {
	sinks []ports.SessionEventSink
}

func NewEventFanout(sinks ...ports.SessionEventSink) *EventFanout {
	fanout := &EventFanout{}
	for _, sink := range sinks {
		if sink != nil {
			fanout.sinks = append(fanout.sinks, sink)
		}
	}
	return fanout
}

// Publish : ошибка одного получателя не мешает остальным
func (f *EventFanout) Publish(ctx context.Context, event model.SessionEvent) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *EventFanout) Len() int {
	return len(f.sinks)
}
