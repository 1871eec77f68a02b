package client_test

import (
	"testing"
	"time"

	"github.com/adamwoolhether/asynchttp/client"
	"github.com/adamwoolhether/asynchttp/internal/httpbin"
)

func TestPerformer_WaitActivity(t *testing.T) {
	c, err := client.Build()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	p := client.NewPerformer(c, client.WithWaitActivity(250*time.Millisecond))
	defer p.Close()

	if got := p.WaitActivity(); got != 250*time.Millisecond {
		t.Errorf("wait activity = %v", got)
	}

	p.SetWaitActivity(-1)
	if got := p.WaitActivity(); got != client.DefaultWaitActivity {
		t.Errorf("wait activity after reset = %v, want %v", got, client.DefaultWaitActivity)
	}
}

func TestPerformer_Multiple(t *testing.T) {
	ts := httpbin.NewServer()
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	for range 3 {
		p := client.NewPerformer(c, client.WithWaitActivity(5*time.Millisecond))
		defer p.Close()
	}

	var b client.Batch
	for range 20 {
		b.Send(c.NewRequest(ts.URL + "/get"))
	}
	if err := b.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestPerformer_CloseStopsDriving(t *testing.T) {
	ts := httpbin.NewServer()
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	p := client.NewPerformer(c)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	req := c.NewRequest(ts.URL + "/get").Send()
	if st := req.WaitFor(200 * time.Millisecond); st != client.Pending {
		t.Errorf("status without a performer = %v, want pending", st)
	}

	p = client.NewPerformer(c)
	defer p.Close()

	if st := req.WaitFor(5 * time.Second); st != client.Done {
		t.Errorf("status = %v, err = %v", st, req.Err())
	}
}

func TestPerformer_ExitsOnClientClose(t *testing.T) {
	c, err := client.Build()
	if err != nil {
		t.Fatal(err)
	}
	p := client.NewPerformer(c)

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("performer did not stop")
	}
}
