package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dccwave"

// collector turns one Status snapshot per scrape into metrics.
type collector struct {
	target Target

	freeMemory *prometheus.Desc
	uptime     *prometheus.Desc
	isrTotal   *prometheus.Desc
	isrMax     *prometheus.Desc
	overruns   *prometheus.Desc
	period     *prometheus.Desc
	pwmActive  *prometheus.Desc
	analog     *prometheus.Desc
}

func newCollector(target Target) *collector {
	return &collector{
		target: target,
		freeMemory: prometheus.NewDesc(namespace+"_free_memory_min_bytes",
			"Lowest free memory seen by the signal interrupt.", nil, nil),
		uptime: prometheus.NewDesc(namespace+"_uptime_seconds",
			"Time the DCC waveform has been running.", nil, nil),
		isrTotal: prometheus.NewDesc(namespace+"_isr_total",
			"Signal interrupts handled.", nil, nil),
		isrMax: prometheus.NewDesc(namespace+"_isr_max_ticks",
			"Longest signal interrupt in timer ticks.", nil, nil),
		overruns: prometheus.NewDesc(namespace+"_isr_overruns_total",
			"Signal interrupts that lasted a full period or longer.", nil, nil),
		period: prometheus.NewDesc(namespace+"_period_ticks",
			"Half-cycle period in timer ticks.", nil, nil),
		pwmActive: prometheus.NewDesc(namespace+"_pwm_active",
			"1 while track pins are under PWM control.", nil, nil),
		analog: prometheus.NewDesc(namespace+"_analog_value",
			"Latest analog reading per pin.", []string{"pin"}, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.freeMemory
	ch <- c.uptime
	ch <- c.isrTotal
	ch <- c.isrMax
	ch <- c.overruns
	ch <- c.period
	ch <- c.pwmActive
	ch <- c.analog
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	st := c.target.Status()
	if st.FreeMemory >= 0 {
		ch <- prometheus.MustNewConstMetric(c.freeMemory, prometheus.GaugeValue, float64(st.FreeMemory))
	}
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.CounterValue, st.Uptime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.isrTotal, prometheus.CounterValue, float64(st.ISR.Count))
	ch <- prometheus.MustNewConstMetric(c.isrMax, prometheus.GaugeValue, float64(st.ISR.MaxTicks))
	ch <- prometheus.MustNewConstMetric(c.overruns, prometheus.CounterValue, float64(st.ISR.Overruns))
	ch <- prometheus.MustNewConstMetric(c.period, prometheus.GaugeValue, float64(st.ISR.PeriodTicks))
	pwm := 0.0
	if st.PWMActive {
		pwm = 1
	}
	ch <- prometheus.MustNewConstMetric(c.pwmActive, prometheus.GaugeValue, pwm)
	for _, a := range st.Analog {
		ch <- prometheus.MustNewConstMetric(c.analog, prometheus.GaugeValue, float64(a.Value), strconv.Itoa(int(a.Pin)))
	}
}
