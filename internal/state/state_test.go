package state

import (
	"sync"
	"testing"
	"time"

	"garden_irrigation/internal/models"
)

func f(v float64) *float64 { return &v }

func TestSensors_SnapshotIsACopy(t *testing.T) {
	var s Sensors
	s.Update(models.SensorSnapshot{AirTemperature: f(21.5), WaterPresent: true})

	got := s.Snapshot()
	*got.AirTemperature = 99

	again := s.Snapshot()
	if again.AirTemperature == nil || *again.AirTemperature != 21.5 {
		t.Fatalf("snapshot aliased internal state: %+v", again.AirTemperature)
	}
	if !again.WaterPresent {
		t.Fatalf("expected water present")
	}
}

func TestSensors_UpdateOverwritesFailedFieldsWithAbsent(t *testing.T) {
	var s Sensors
	s.Update(models.SensorSnapshot{AirTemperature: f(20), AirHumidity: f(40)})
	s.Update(models.SensorSnapshot{AirTemperature: f(22)})

	got := s.Snapshot()
	if got.AirHumidity != nil {
		t.Fatalf("expected humidity absent after failed read, got %v", *got.AirHumidity)
	}
	if *got.AirTemperature != 22 {
		t.Fatalf("got %.1f, want 22", *got.AirTemperature)
	}
}

func TestWeather_ReadyOnlyAfterCurrentConditions(t *testing.T) {
	var w Weather
	if w.Ready() {
		t.Fatalf("empty weather must not be ready")
	}
	w.Replace(models.WeatherSnapshot{PastPrecipMM: 3})
	if w.Ready() {
		t.Fatalf("weather without current conditions must not be ready")
	}
	w.Replace(models.WeatherSnapshot{Current: &models.CurrentConditions{TempC: f(18)}})
	if !w.Ready() {
		t.Fatalf("expected ready")
	}
}

func TestSolar_ActiveIsEvaluatedAgainstNow(t *testing.T) {
	var s Solar
	start := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)
	s.Set(models.SolarWindow{Start: &start, End: &end})

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", start.Add(-time.Second), false},
		{"at_start", start, true},
		{"inside", start.Add(2 * time.Minute), true},
		{"at_end_exclusive", end, false},
		{"after", end.Add(time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Active(tc.now); got != tc.want {
				t.Fatalf("Active(%s)=%v, want %v", tc.now, got, tc.want)
			}
		})
	}

	s.Set(models.SolarWindow{})
	if s.Active(start) {
		t.Fatalf("window without bounds must never be active")
	}
}

func TestIrrigation_MailboxLastWriteWinsAndTakeClears(t *testing.T) {
	i := NewIrrigation(0)
	i.Publish(10, 37.5)
	i.Publish(20, 75)

	l, sec, ok := i.Take()
	if !ok || l != 20 || sec != 75 {
		t.Fatalf("Take()=(%v,%v,%v), want (20,75,true)", l, sec, ok)
	}
	if _, _, ok := i.Take(); ok {
		t.Fatalf("second Take must find an empty mailbox")
	}
}

func TestIrrigation_PublishClampsNegative(t *testing.T) {
	i := NewIrrigation(-3)
	i.Publish(-5, -10)
	st := i.Snapshot()
	if st.PendingRequiredL != 0 || st.PendingRuntimeSec != 0 || st.TotalWaterAppliedL != 0 {
		t.Fatalf("expected clamped zeros, got %+v", st)
	}
}

func TestIrrigation_TotalNeverDecreases(t *testing.T) {
	i := NewIrrigation(4.36)
	prev := i.Total()
	for _, c := range []float64{1, 0, -7, 2.5, -0.1, 10} {
		got := i.Credit(c)
		if got < prev {
			t.Fatalf("total decreased from %.2f to %.2f", prev, got)
		}
		prev = got
	}
	if prev != 4.36+1+2.5+10 {
		t.Fatalf("unexpected total %.2f", prev)
	}
}

func TestStore_BalanceInputsConcurrentWithWriters(t *testing.T) {
	s := NewStore(0)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(2)
	go func() {
		defer wg.Done()
		for n := 0; ; n++ {
			select {
			case <-stop:
				return
			default:
			}
			v := float64(n)
			s.Sensors.Update(models.SensorSnapshot{AirTemperature: &v, AirHumidity: &v})
		}
	}()
	go func() {
		defer wg.Done()
		for n := 0; ; n++ {
			select {
			case <-stop:
				return
			default:
			}
			v := float64(n)
			s.Weather.Replace(models.WeatherSnapshot{
				Current:          &models.CurrentConditions{TempC: f(v)},
				PastPrecipMM:     v,
				ForecastPrecipMM: v,
			})
		}
	}()

	for n := 0; n < 1000; n++ {
		sn, w, _ := s.BalanceInputs()
		if sn.AirTemperature != nil && *sn.AirTemperature != *sn.AirHumidity {
			t.Fatalf("observed half-written sensor snapshot")
		}
		if w.Current != nil && (*w.Current.TempC != w.PastPrecipMM || w.PastPrecipMM != w.ForecastPrecipMM) {
			t.Fatalf("observed half-written weather snapshot: %+v", w)
		}
	}
	close(stop)
	wg.Wait()
}
