package client_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/adamwoolhether/asynchttp/client"
)

func ExampleClient_NewRequest() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "hello %s", r.URL.Query().Get("name"))
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer c.Close()

	p := client.NewPerformer(c)
	defer p.Close()

	req := c.NewRequest(ts.URL).QueryParam("name", "gopher").Send()

	resp, err := req.Take()
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(resp.StatusCode, string(resp.Content))
	// Output: 200 hello gopher
}

func ExampleClient_Perform() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer c.Close()

	req := c.NewRequest(ts.URL).
		Method(client.MethodPost).
		ContentString("k=v").
		Callback(func(r *client.Request) error {
			fmt.Println("callback:", r.Status())
			return nil
		}).
		Send()

	for req.IsPending() {
		if err := c.Perform(); err != nil {
			fmt.Println("error:", err)
			return
		}
		_ = c.WaitActivity(50 * time.Millisecond)
	}

	resp, err := req.Take()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("status code:", resp.StatusCode)
	// Output:
	// callback: done
	// status code: 202
}

func ExampleRequest_Take_timeout() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer c.Close()

	p := client.NewPerformer(c)
	defer p.Close()

	_, err = c.NewRequest(ts.URL).ResponseTimeout(50 * time.Millisecond).Send().Take()

	var reqErr *client.Error
	if errors.As(err, &reqErr) {
		fmt.Println(reqErr.Status, reqErr.Message)
	}
	// Output: timeout operation timeout
}
