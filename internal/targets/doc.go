// Package targets implements presentation targets on top of MQTT.
//
// Surfaces, animators and media players are remote devices. Commands are
// published to graylogic/command/{kind}/{id}; devices report back on
// graylogic/state/{kind}/{id} and the reported state is cached so that
// drivers polling once per tick never block on the network.
//
// A Directory owns every configured target and the named custom
// transitions, and resolves them by ID for schedule.Build.
//
// # Thread Safety
//
// Target methods are called from the playback goroutine while state
// messages arrive on MQTT goroutines; caches are guarded by RWMutex.
package targets
