package simulator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wisefido-vitals/internal/simulator"
)

func TestGenerator_Deterministic(t *testing.T) {
	opts := simulator.DefaultOptions()

	first := simulator.NewGenerator(opts).Generate()
	second := simulator.NewGenerator(opts).Generate()
	require.Equal(t, first, second)
}

func TestGenerator_ScenarioShape(t *testing.T) {
	gen := simulator.NewGenerator(simulator.DefaultOptions())
	samples := gen.Generate()
	require.Len(t, samples, 1800)

	// 正常段：基线附近，无恶化标签
	require.InDelta(t, 75, *samples[100].HeartRate, 10)
	require.InDelta(t, 98, *samples[100].SpO2, 2)
	require.Equal(t, 0, samples[100].DistressLabel)

	// 恶化末段：HR 明显升高，SpO2 明显下降，标签为 1
	late := samples[1490]
	require.Equal(t, 1, late.DistressLabel)
	require.Greater(t, *late.HeartRate, 100.0)
	require.Less(t, *late.SpO2, 94.0)

	// 颠簸伪影段：强振动
	require.Greater(t, samples[310].Vibration, 0.5)

	// 传感器脱落段：HR/SpO2 缺失
	require.Nil(t, samples[1005].HeartRate)
	require.Nil(t, samples[1005].SpO2)

	// 生理范围截断
	for i, s := range samples {
		if s.HeartRate != nil {
			require.GreaterOrEqual(t, *s.HeartRate, 40.0, "sample %d", i)
			require.LessOrEqual(t, *s.HeartRate, 200.0, "sample %d", i)
		}
		if s.SpO2 != nil {
			require.GreaterOrEqual(t, *s.SpO2, 60.0, "sample %d", i)
			require.LessOrEqual(t, *s.SpO2, 100.0, "sample %d", i)
		}
	}
}

func TestGenerator_TimestampsAreSequential(t *testing.T) {
	opts := simulator.Options{DurationSec: 60, StartTime: 1000, Seed: 7}
	samples := simulator.NewGenerator(opts).Generate()
	require.Len(t, samples, 60)

	require.Equal(t, 1000.0, samples[0].Timestamp)
	for i := 1; i < len(samples); i++ {
		require.Equal(t, samples[i-1].Timestamp+1, samples[i].Timestamp)
	}
}
