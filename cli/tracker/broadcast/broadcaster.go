package broadcast

import (
	"sync"

	"github.com/daniil11ru/bustrack/cli/tracker/cache"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
)

// Subscriber получатель событий комнаты. Deliver не должен блокироваться:
// доставка best-effort, без буферизации и повторов на стороне комнаты.
type Subscriber interface {
	ID() string
	Deliver(vehicleID types.VehicleID, position types.Position)
}

type room struct {
	mu      sync.Mutex
	members map[string]Subscriber
	// dead комната удалена из реестра, публикация должна взять новую
	dead bool
}

// Broadcaster группирует подписчиков по транспорту и рассылает им местоположения.
// Единственный писатель в кэш живых местоположений.
//
// Порядок захвата блокировок: Broadcaster.mu, затем room.mu.
type Broadcaster struct {
	cache *cache.LiveLocations

	mu          sync.RWMutex
	rooms       map[types.VehicleID]*room
	memberships map[string]map[types.VehicleID]struct{}
}

func New(liveLocations *cache.LiveLocations) *Broadcaster {
	return &Broadcaster{
		cache:       liveLocations,
		rooms:       make(map[types.VehicleID]*room),
		memberships: make(map[string]map[types.VehicleID]struct{}),
	}
}

// Join добавляет подписчика в комнату транспорта (идемпотентно). Если в кэше есть
// местоположение, оно доставляется подписчику под блокировкой комнаты, то есть
// раньше любой последующей публикации. Возвращает это местоположение и признак попадания.
func (b *Broadcaster) Join(subscriber Subscriber, vehicleID types.VehicleID) (types.Position, bool) {
	b.mu.Lock()
	r, ok := b.rooms[vehicleID]
	if !ok {
		r = &room{members: make(map[string]Subscriber)}
		b.rooms[vehicleID] = r
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[subscriber.ID()] = subscriber
	joined, ok := b.memberships[subscriber.ID()]
	if !ok {
		joined = make(map[types.VehicleID]struct{})
		b.memberships[subscriber.ID()] = joined
	}
	joined[vehicleID] = struct{}{}
	b.mu.Unlock()

	position, hit := b.cache.Get(vehicleID)
	if hit {
		subscriber.Deliver(vehicleID, position)
	}
	return position, hit
}

// Offer доставляет стартовое местоположение, прочитанное из справочника, если
// подписчик всё ещё в комнате. Если за время чтения в кэше появилось значение,
// доставляется оно: оно не старее любой уже разосланной публикации.
func (b *Broadcaster) Offer(subscriber Subscriber, vehicleID types.VehicleID, durable types.Position) bool {
	b.mu.RLock()
	r, ok := b.rooms[vehicleID]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dead {
		return false
	}
	if _, member := r.members[subscriber.ID()]; !member {
		return false
	}

	if cached, hit := b.cache.Get(vehicleID); hit {
		subscriber.Deliver(vehicleID, cached)
	} else {
		subscriber.Deliver(vehicleID, durable)
	}
	return true
}

// Leave удаляет подписчика из комнаты; пустая комната удаляется
func (b *Broadcaster) Leave(subscriber Subscriber, vehicleID types.VehicleID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.leaveLocked(subscriber.ID(), vehicleID)
}

// LeaveAll удаляет подписчика из всех комнат, возвращает их список
func (b *Broadcaster) LeaveAll(subscriber Subscriber) []types.VehicleID {
	b.mu.Lock()
	defer b.mu.Unlock()

	joined := b.memberships[subscriber.ID()]
	left := make([]types.VehicleID, 0, len(joined))
	for vehicleID := range joined {
		left = append(left, vehicleID)
	}
	for _, vehicleID := range left {
		b.leaveLocked(subscriber.ID(), vehicleID)
	}
	return left
}

func (b *Broadcaster) leaveLocked(subscriberID string, vehicleID types.VehicleID) {
	if joined, ok := b.memberships[subscriberID]; ok {
		delete(joined, vehicleID)
		if len(joined) == 0 {
			delete(b.memberships, subscriberID)
		}
	}

	r, ok := b.rooms[vehicleID]
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.members, subscriberID)
	if len(r.members) == 0 {
		r.dead = true
		delete(b.rooms, vehicleID)
	}
	r.mu.Unlock()
}

// Publish записывает местоположение в кэш и затем рассылает его подписчикам комнаты.
// Для одного транспорта публикации доставляются каждому подписчику в порядке вызова.
// Возвращает число подписчиков, которым событие было передано.
func (b *Broadcaster) Publish(vehicleID types.VehicleID, position types.Position) int {
	for {
		b.mu.RLock()
		r, ok := b.rooms[vehicleID]
		b.mu.RUnlock()

		if !ok {
			b.cache.Put(vehicleID, position)
			return 0
		}

		r.mu.Lock()
		if r.dead {
			r.mu.Unlock()
			continue
		}

		b.cache.Put(vehicleID, position)
		for _, subscriber := range r.members {
			subscriber.Deliver(vehicleID, position)
		}
		delivered := len(r.members)
		r.mu.Unlock()

		return delivered
	}
}

// IsMember проверяет, подписан ли подписчик на транспорт
func (b *Broadcaster) IsMember(subscriberID string, vehicleID types.VehicleID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.memberships[subscriberID][vehicleID]
	return ok
}

func (b *Broadcaster) Members(vehicleID types.VehicleID) int {
	b.mu.RLock()
	r, ok := b.rooms[vehicleID]
	b.mu.RUnlock()
	if !ok {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (b *Broadcaster) Rooms() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms)
}

// Subscribers число уникальных подписчиков во всех комнатах
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.memberships)
}
