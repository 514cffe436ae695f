package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

type client struct {
	base   string
	device string
	hc     *http.Client
	out    io.Writer
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("server answered %d %s", e.code, http.StatusText(e.code))
	}
	return fmt.Sprintf("server answered %d %s: %s", e.code, http.StatusText(e.code), e.body)
}

func (c *client) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return c.cmdRegister(ctx, args)
	case "unregister":
		return c.cmdUnregister(ctx, args)
	case "updates":
		return c.cmdUpdates(ctx, args)
	case "fetch":
		return c.cmdFetch(ctx, args)
	case "log":
		return c.cmdLog(ctx, args)
	default:
		return flag.ErrHelp
	}
}

func (c *client) registrationURL(passType, serial string) string {
	return c.base + "/devices/" + url.PathEscape(c.device) + "/registrations/" +
		url.PathEscape(passType) + "/" + url.PathEscape(serial)
}

func (c *client) do(ctx context.Context, method, u string, body any, hdr http.Header) (*http.Response, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, nil, err
	}
	for k, vs := range hdr {
		req.Header[k] = vs
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp, b, err
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "ApplePass "+token)
	}
	return h
}

func (c *client) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	passType := fs.String("type", "", "passTypeIdentifier")
	serial := fs.String("serial", "", "serial number")
	token := fs.String("token", "", "pass authentication token")
	push := fs.String("push", "", "push token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	resp, body, err := c.do(ctx, http.MethodPost, c.registrationURL(*passType, *serial),
		map[string]string{"pushToken": *push}, authHeader(*token))
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusCreated:
		fmt.Fprintln(c.out, "registered")
	case http.StatusOK:
		fmt.Fprintln(c.out, "already registered")
	default:
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	return nil
}

func (c *client) cmdUnregister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("unregister", flag.ContinueOnError)
	passType := fs.String("type", "", "passTypeIdentifier")
	serial := fs.String("serial", "", "serial number")
	token := fs.String("token", "", "pass authentication token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	resp, body, err := c.do(ctx, http.MethodDelete, c.registrationURL(*passType, *serial), nil, authHeader(*token))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	fmt.Fprintln(c.out, "unregistered")
	return nil
}

type serialNumbers struct {
	LastUpdated   string   `json:"lastUpdated"`
	SerialNumbers []string `json:"serialNumbers"`
}

func (c *client) cmdUpdates(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("updates", flag.ContinueOnError)
	passType := fs.String("type", "", "passTypeIdentifier")
	since := fs.String("since", "", "passesUpdatedSince; defaults to the remembered marker")
	full := fs.Bool("full", false, "ignore the remembered marker")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := loadState(c.device)
	if err != nil {
		return err
	}
	if *since == "" && !*full {
		*since = st.LastUpdated[*passType]
	}

	u := c.base + "/devices/" + url.PathEscape(c.device) + "/registrations/" + url.PathEscape(*passType)
	if *since != "" {
		u += "?" + url.Values{"passesUpdatedSince": {*since}}.Encode()
	}
	resp, body, err := c.do(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusNoContent:
		fmt.Fprintln(c.out, "no updates")
		return nil
	case http.StatusOK:
	default:
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	var res serialNumbers
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	st.LastUpdated[*passType] = res.LastUpdated
	if err := saveState(c.device, st); err != nil {
		return err
	}
	printJSON(c.out, res)
	return nil
}

func (c *client) cmdFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	passType := fs.String("type", "", "passTypeIdentifier")
	serial := fs.String("serial", "", "serial number")
	token := fs.String("token", "", "pass authentication token")
	ims := fs.String("ims", "", "If-Modified-Since (HTTP date)")
	outPath := fs.String("out", "", "write the pass to this file instead of reporting its size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hdr := authHeader(*token)
	if *ims != "" {
		hdr.Set("If-Modified-Since", *ims)
	}
	u := c.base + "/passes/" + url.PathEscape(*passType) + "/" + url.PathEscape(*serial)
	resp, body, err := c.do(ctx, http.MethodGet, u, nil, hdr)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusNotModified:
		fmt.Fprintln(c.out, "not modified")
		return nil
	case http.StatusOK:
	default:
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, body, 0o644); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out, "%d bytes, last modified %s\n", len(body), resp.Header.Get("Last-Modified"))
	return nil
}

func (c *client) cmdLog(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("log: no messages")
	}
	resp, body, err := c.do(ctx, http.MethodPost, c.base+"/log", map[string][]string{"logs": args}, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	fmt.Fprintf(c.out, "%d lines sent\n", len(args))
	return nil
}
