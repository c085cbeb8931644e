package metrics

import (
	"runtime"
	"time"
)

// CollectProcessMetrics samples runtime.MemStats into gauges every
// refresh, grounded on the use site in cmd/kcn/main.go ("go
// metrics.CollectProcessMetrics(3 * time.Second)") -- the teacher's own
// implementation isn't carried in this module, so this rebuilds the
// sampling loop directly against runtime.ReadMemStats. The gauges are
// registered here, not at package init, since Enabled is only set once
// flags are parsed in main -- registering earlier would permanently wire
// up the no-op NilGauge implementation.
func CollectProcessMetrics(refresh time.Duration) {
	if !Enabled {
		return
	}
	memAllocs := GetOrRegisterGauge("system/memory/allocs")
	memPauses := GetOrRegisterGauge("system/memory/pauses")
	memHeld := GetOrRegisterGauge("system/memory/held")
	memUsed := GetOrRegisterGauge("system/memory/used")

	var stats runtime.MemStats
	for range time.Tick(refresh) {
		runtime.ReadMemStats(&stats)
		memAllocs.Update(int64(stats.Mallocs))
		memPauses.Update(int64(stats.PauseTotalNs))
		memHeld.Update(int64(stats.HeapSys + stats.StackSys))
		memUsed.Update(int64(stats.HeapAlloc + stats.StackInuse))
	}
}
