package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/core/model"
	"github.com/kilianp07/evplan/core/planner"
	"github.com/kilianp07/evplan/infra/solver"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
	if _, err := (Config{UseTLS: true}).LoadTLSConfig(); err == nil {
		t.Fatalf("expected error without files")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", AuthMethod: "certificate"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "" {
		t.Fatalf("username set for certificate auth")
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	if c.Enabled() {
		t.Fatal("empty broker must disable publishing")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("disabled config: %v", err)
	}
	c = Config{Broker: "tcp://b:1883"}
	c.SetDefaults()
	if c.TopicPrefix != "evplan" || c.ClientID == "" || c.MaxRetries != 3 || c.BackoffMS != 100 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	c.QoS = 3
	if err := c.Validate(); err == nil {
		t.Fatal("expected qos error")
	}
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func solvedResult(t *testing.T) *planner.Result {
	t.Helper()
	g, _ := model.NewTimeGrid(4, 0.5)
	prices, _ := model.NewPriceSeries(g, []float64{0.1, 0.2, 0.1, 0.3})
	evs := []model.EVProfile{
		{Name: "EV1", Arrival: 1, Departure: 3, ArrivalEnergy: 10, DesiredEnergy: 12, MaxChargingPower: 11, MaxDischargingPower: 4, BatteryCapacity: 50},
		{Name: "EV2", Arrival: 2, Departure: 4, ArrivalEnergy: 20, DesiredEnergy: 20, MaxChargingPower: 11, BatteryCapacity: 50},
	}
	res, err := planner.New(solver.NewSimplex(0, nil), planner.DefaultOptions(), nil, nil).Plan(context.Background(), g, prices, evs)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if res.Status != lp.StatusOptimal {
		t.Fatalf("status %v", res.Status)
	}
	return res
}

func TestPlans(t *testing.T) {
	plans := Plans(solvedResult(t))
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	ev1 := plans[0]
	if ev1.Vehicle != "EV1" || len(ev1.Setpoints) != 3 || ev1.Setpoints[0].Slot != 1 {
		t.Fatalf("unexpected plan: %+v", ev1)
	}
	if ev1.Setpoints[2].EnergyKWh < 12-1e-6 {
		t.Fatalf("final energy %v below target", ev1.Setpoints[2].EnergyKWh)
	}
	if plans[1].Setpoints[0].Slot != 2 || plans[1].Arrival != 2 {
		t.Fatalf("unexpected window: %+v", plans[1])
	}
}

func TestPublisher_PublishResult(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", TopicPrefix: "site", QoS: 1, Retain: true})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	res := solvedResult(t)
	if err := pub.PublishResult(context.Background(), res); err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := []string{"site/status", "site/EV1/schedule", "site/EV2/schedule"}
	if len(mc.published) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(mc.published))
	}
	for i, topic := range want {
		m := mc.published[i]
		if m.topic != topic || m.qos != 1 || !m.retained {
			t.Errorf("message %d: %+v", i, m)
		}
	}
	var st RunStatus
	if err := json.Unmarshal(mc.published[0].payload, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.RunID != res.RunID || st.Status != "optimal" || st.Error != "" {
		t.Fatalf("unexpected status: %+v", st)
	}
	var plan VehiclePlan
	if err := json.Unmarshal(mc.published[2].payload, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.Vehicle != "EV2" || plan.IntervalHours != 0.5 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	pub.Disconnect()
}

func TestPublisher_InfeasibleOnlyStatus(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	g, _ := model.NewTimeGrid(2, 1)
	prices, _ := model.NewPriceSeries(g, []float64{0.1, 0.1})
	evs := []model.EVProfile{{Name: "EV1", Arrival: 1, Departure: 2, DesiredEnergy: 40, MaxChargingPower: 5, BatteryCapacity: 50}}
	res, err := planner.New(solver.NewSimplex(0, nil), planner.DefaultOptions(), nil, nil).Plan(context.Background(), g, prices, evs)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if err := pub.PublishResult(context.Background(), res); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].topic != "evplan/status" {
		t.Fatalf("expected only the status message, got %+v", mc.published)
	}
	var st RunStatus
	_ = json.Unmarshal(mc.published[0].payload, &st)
	if st.Status != "infeasible" || st.Error == "" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMock(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.send(context.Background(), "t", map[string]int{"a": 1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries")
	}
}

func TestRetryExhausted(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	withMock(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 2, BackoffMS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.send(context.Background(), "t", 1); err == nil {
		t.Fatalf("expected error")
	}
	if len(mc.published) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(mc.published))
	}
}

func TestPublishCancelled(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	withMock(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 5, BackoffMS: 10000})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pub.send(ctx, "t", 1); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestConnectError(t *testing.T) {
	mc := &mockClient{connectErr: fmt.Errorf("refused")}
	withMock(t, mc)
	if _, err := NewPublisher(Config{Broker: "tcp://localhost:1883"}); err == nil {
		t.Fatal("expected connect error")
	}
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts        *paho.ClientOptions
	published   []published
	publishErrs []error
	connectErr  error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, published{topic, qos, retained, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }
