package dav

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

const (
	testPrincipal = "/user/"
	testHomeSet   = "/user/calendars/"
)

// memoryBackend is an in-memory caldav.Backend holding calendars and their
// objects by path.
type memoryBackend struct {
	mu        sync.Mutex
	calendars []caldav.Calendar
	objects   map[string]caldav.CalendarObject
	etag      int
}

func newMemoryBackend(names ...string) *memoryBackend {
	b := &memoryBackend{objects: make(map[string]caldav.CalendarObject)}
	for _, name := range names {
		b.calendars = append(b.calendars, caldav.Calendar{
			Path:                  testHomeSet + strings.ToLower(name) + "/",
			Name:                  name,
			SupportedComponentSet: []string{ical.CompEvent},
		})
	}
	return b
}

func (b *memoryBackend) CurrentUserPrincipal(ctx context.Context) (string, error) {
	return testPrincipal, nil
}

func (b *memoryBackend) CalendarHomeSetPath(ctx context.Context) (string, error) {
	return testHomeSet, nil
}

func (b *memoryBackend) CreateCalendar(ctx context.Context, calendar *caldav.Calendar) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calendars = append(b.calendars, *calendar)
	return nil
}

func (b *memoryBackend) ListCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]caldav.Calendar(nil), b.calendars...), nil
}

func (b *memoryBackend) GetCalendar(ctx context.Context, p string) (*caldav.Calendar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.calendars {
		if path.Clean(b.calendars[i].Path) == path.Clean(p) {
			cal := b.calendars[i]
			return &cal, nil
		}
	}
	return nil, webdav.NewHTTPError(404, fmt.Errorf("calendar %s not found", p))
}

func (b *memoryBackend) GetCalendarObject(ctx context.Context, p string, req *caldav.CalendarCompRequest) (*caldav.CalendarObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[p]
	if !ok {
		return nil, webdav.NewHTTPError(404, fmt.Errorf("object %s not found", p))
	}
	return &obj, nil
}

func (b *memoryBackend) ListCalendarObjects(ctx context.Context, p string, req *caldav.CalendarCompRequest) ([]caldav.CalendarObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []caldav.CalendarObject
	for objPath, obj := range b.objects {
		if path.Dir(objPath) == path.Clean(p) {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (b *memoryBackend) QueryCalendarObjects(ctx context.Context, p string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error) {
	return b.ListCalendarObjects(ctx, p, &query.CompRequest)
}

func (b *memoryBackend) PutCalendarObject(ctx context.Context, p string, cal *ical.Calendar, opts *caldav.PutCalendarObjectOptions) (*caldav.CalendarObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.etag++
	obj := caldav.CalendarObject{Path: p, ETag: fmt.Sprintf("etag-%d", b.etag), Data: cal}
	b.objects[p] = obj
	return &obj, nil
}

func (b *memoryBackend) DeleteCalendarObject(ctx context.Context, p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, p)
	return nil
}

func (b *memoryBackend) object(p string) (caldav.CalendarObject, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[p]
	return obj, ok
}
