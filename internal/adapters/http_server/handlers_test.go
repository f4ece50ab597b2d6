package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	httpserver "staysense/internal/adapters/http_server"
	"staysense/internal/adapters/session"
	"staysense/internal/app"
	"staysense/internal/domain"
	"staysense/internal/storage/memory"
)

// ---- fakes ----

type stubGeo struct{}

func (stubGeo) Forward(ctx context.Context, address string) (domain.Point, error) {
	return domain.Point{Lon: 77.2090057, Lat: 28.6138954}, nil
}

type stubImages struct{ uploaded []string }

func (s *stubImages) Upload(ctx context.Context, in domain.ImageUpload) (domain.Image, error) {
	if _, err := io.Copy(io.Discard, in.Data); err != nil {
		return domain.Image{}, err
	}
	s.uploaded = append(s.uploaded, in.Filename)
	return domain.Image{URL: "https://cdn.test/" + in.Filename, Filename: in.Filename}, nil
}

func (s *stubImages) Delete(ctx context.Context, key string) error { return nil }

type stubGateway struct{ last domain.CheckoutRequest }

func (g *stubGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	g.last = req
	return domain.CheckoutSession{ID: "cs_1", URL: "https://checkout.test/cs_1"}, nil
}

// mapCache keeps JSON values in memory; expiry is not modelled.
type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *mapCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string][]byte{}
	}
	c.m[key] = b
	return nil
}

func (c *mapCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

// ---- harness ----

type harness struct {
	srv    *httptest.Server
	store  *memory.Store
	images *stubImages
	gw     *stubGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: memory.New(), images: &stubImages{}, gw: &stubGateway{}}
	cache := &mapCache{}

	view, err := httpserver.NewRenderer()
	require.NoError(t, err)

	sessions := session.NewManager("test-secret", time.Hour, false, cache)
	s := httpserver.New(sessions)
	s.MountHandlers(&httpserver.Handlers{
		Hotels:   app.NewHotelService(h.store, cache, h.images, stubGeo{}, time.Minute, 2),
		Users:    app.NewUserService(h.store, h.store).WithHashCost(bcrypt.MinCost),
		Checkout: app.NewCheckoutService(h.store, h.gw, "http://staysense.test", "inr"),
		View:     view,
	})
	h.srv = httptest.NewServer(s.Mux())
	t.Cleanup(h.srv.Close)
	return h
}

// browser keeps cookies and does not follow redirects.
func (h *harness) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar:           jar,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

func (h *harness) signUp(t *testing.T, name string) *http.Client {
	t.Helper()
	c := h.browser(t)
	res := postForm(t, c, h.srv.URL+"/register", url.Values{"username": {name}, "password": {"password1"}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.Equal(t, "/hotels", res.Header.Get("Location"))
	return c
}

func (h *harness) createHotel(t *testing.T, c *http.Client, name string) string {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("hotel[name]", name))
	require.NoError(t, mw.WriteField("hotel[address]", "delhi"))
	require.NoError(t, mw.WriteField("hotel[price]", "10000"))
	fw, err := mw.CreateFormFile("image", "front.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("jpeg bytes"))
	require.NoError(t, mw.Close())

	res, err := c.Post(h.srv.URL+"/hotels", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	loc := res.Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, "/hotels/"), loc)
	return loc
}

func postForm(t *testing.T, c *http.Client, u string, v url.Values) *http.Response {
	t.Helper()
	res, err := c.PostForm(u, v)
	require.NoError(t, err)
	res.Body.Close()
	return res
}

func get(t *testing.T, c *http.Client, u string) (*http.Response, string) {
	t.Helper()
	res, err := c.Get(u)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(b)
}

// ---- tests ----

func TestPublicPages(t *testing.T) {
	h := newHarness(t)
	c := h.browser(t)

	res, body := get(t, c, h.srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body)

	res, body = get(t, c, h.srv.URL+"/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Browse hotels")

	res, body = get(t, c, h.srv.URL+"/hotels")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "No hotels yet.")

	res, _ = get(t, c, h.srv.URL+"/hotels/999")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/hotels", res.Header.Get("Location"))

	res, body = get(t, c, h.srv.URL+"/hotels/3/checkout/cancel")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Payment failed")
}

func TestCreateAndShowHotel(t *testing.T) {
	h := newHarness(t)
	c := h.signUp(t, "owner@example.com")
	loc := h.createHotel(t, c, "Hotel HighRise")

	res, body := get(t, c, h.srv.URL+loc)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Hotel HighRise")
	assert.Contains(t, body, "Listed by owner@example.com")
	assert.Contains(t, body, `data-lon="77.2090057"`)
	assert.Contains(t, body, "https://cdn.test/front.jpg")
	assert.Contains(t, body, "?_method=DELETE")
	assert.Equal(t, []string{"front.jpg"}, h.images.uploaded)
}

func TestAnonymousIsSentToLoginAndBack(t *testing.T) {
	h := newHarness(t)
	owner := h.signUp(t, "owner")
	loc := h.createHotel(t, owner, "H")

	anon := h.browser(t)
	res := postForm(t, anon, h.srv.URL+loc+"/upvote", nil)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))
	hv, err := h.store.GetHotel(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, hv.Upvotes)

	res, _ = get(t, anon, h.srv.URL+"/hotels/new")
	assert.Equal(t, "/login", res.Header.Get("Location"))

	// register separately, then log in from the anonymous browser
	h.signUp(t, "guest")
	res = postForm(t, anon, h.srv.URL+"/login", url.Values{"username": {"guest"}, "password": {"password1"}})
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/hotels/new", res.Header.Get("Location"))

	res = postForm(t, anon, h.srv.URL+"/login", url.Values{"username": {"guest"}, "password": {"nope"}})
	assert.Equal(t, "/login", res.Header.Get("Location"))
}

func TestVoteToggleOverHTTP(t *testing.T) {
	h := newHarness(t)
	owner := h.signUp(t, "owner")
	loc := h.createHotel(t, owner, "H")
	voter := h.signUp(t, "voter")
	voterID := int64(2)

	steps := []struct {
		method, path string
		ups, downs   []int64
	}{
		{http.MethodPost, "/upvote", []int64{voterID}, nil},
		{http.MethodGet, "/upvote", nil, nil},
		{http.MethodPost, "/downvote", nil, []int64{voterID}},
		{http.MethodPost, "/upvote", []int64{voterID}, nil},
	}
	for i, s := range steps {
		req, err := http.NewRequest(s.method, h.srv.URL+loc+s.path, nil)
		require.NoError(t, err)
		res, err := voter.Do(req)
		require.NoError(t, err)
		res.Body.Close()
		require.Equalf(t, http.StatusSeeOther, res.StatusCode, "step %d", i)
		assert.Equalf(t, loc, res.Header.Get("Location"), "step %d", i)

		hv, err := h.store.GetHotel(context.Background(), 1)
		require.NoError(t, err)
		assert.ElementsMatchf(t, s.ups, hv.Upvotes, "step %d", i)
		assert.ElementsMatchf(t, s.downs, hv.Downvotes, "step %d", i)
	}

	_, body := get(t, voter, h.srv.URL+loc)
	assert.Contains(t, body, `class="active">▲ 1`)
}

func TestOnlyAuthorMayEditOrDelete(t *testing.T) {
	h := newHarness(t)
	owner := h.signUp(t, "owner")
	loc := h.createHotel(t, owner, "Original")
	stranger := h.signUp(t, "stranger")
	edit := url.Values{"hotel[name]": {"Hijacked"}, "hotel[address]": {"delhi"}, "hotel[price]": {"1"}}

	res, _ := get(t, stranger, h.srv.URL+loc+"/edit")
	assert.Equal(t, "/hotels", res.Header.Get("Location"))

	res = postForm(t, stranger, h.srv.URL+loc+"?_method=PATCH", edit)
	assert.Equal(t, "/hotels", res.Header.Get("Location"))
	res = postForm(t, stranger, h.srv.URL+loc, url.Values{"_method": {"DELETE"}})
	assert.Equal(t, "/hotels", res.Header.Get("Location"))

	hv, err := h.store.GetHotel(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Original", hv.Name)

	res, body := get(t, owner, h.srv.URL+loc+"/edit")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `value="Original"`)

	edit.Set("hotel[name]", "Renamed")
	res = postForm(t, owner, h.srv.URL+loc+"?_method=PATCH", edit)
	assert.Equal(t, loc, res.Header.Get("Location"))
	hv, _ = h.store.GetHotel(context.Background(), 1)
	assert.Equal(t, "Renamed", hv.Name)

	edit.Set("hotel[price]", "cheap")
	res = postForm(t, owner, h.srv.URL+loc+"?_method=PATCH", edit)
	assert.Equal(t, "/hotels", res.Header.Get("Location"))

	res = postForm(t, owner, h.srv.URL+loc, url.Values{"_method": {"DELETE"}})
	assert.Equal(t, "/hotels", res.Header.Get("Location"))
	_, err = h.store.GetHotel(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckoutRedirectsToProcessor(t *testing.T) {
	h := newHarness(t)
	owner := h.signUp(t, "owner")
	loc := h.createHotel(t, owner, "H")
	buyer := h.signUp(t, "buyer@example.com")

	res, _ := get(t, buyer, h.srv.URL+loc+"/checkout")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "https://checkout.test/cs_1", res.Header.Get("Location"))
	assert.Equal(t, "buyer@example.com", h.gw.last.CustomerEmail)
	assert.Equal(t, int64(1000000), h.gw.last.UnitAmount)
	assert.Equal(t, "http://staysense.test"+loc+"/checkout/success", h.gw.last.SuccessURL)
}

func TestProfileAndLogout(t *testing.T) {
	h := newHarness(t)
	me := h.signUp(t, "maya")
	h.createHotel(t, me, "Mine")
	other := h.signUp(t, "other")

	res, body := get(t, other, h.srv.URL+"/users/1")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Mine")
	assert.NotContains(t, body, "Edit profile")

	res = postForm(t, other, h.srv.URL+"/users/1?_method=PATCH", url.Values{"user[username]": {"stolen"}})
	assert.Equal(t, "/users/1", res.Header.Get("Location"))
	u, _ := h.store.GetUser(context.Background(), 1)
	assert.Equal(t, "maya", u.Username)

	res = postForm(t, me, h.srv.URL+"/users/1?_method=PATCH", url.Values{"user[username]": {"maya-renamed"}})
	assert.Equal(t, "/users/1", res.Header.Get("Location"))
	_, body = get(t, me, h.srv.URL+"/users/1")
	assert.Contains(t, body, "maya-renamed")

	res, _ = get(t, me, h.srv.URL+"/logout")
	assert.Equal(t, "/hotels", res.Header.Get("Location"))
	res, _ = get(t, me, h.srv.URL+"/users/1")
	assert.Equal(t, "/login", res.Header.Get("Location"))
}

func TestRenameReplacesSessionAndListings(t *testing.T) {
	h := newHarness(t)
	me := h.signUp(t, "maya")
	loc := h.createHotel(t, me, "Mine")

	_, body := get(t, me, h.srv.URL+loc)
	assert.Contains(t, body, "Listed by maya")

	u, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	stale := me.Jar.Cookies(u)

	res := postForm(t, me, h.srv.URL+"/users/1?_method=PATCH", url.Values{"user[username]": {"maya-renamed"}})
	assert.Equal(t, "/users/1", res.Header.Get("Location"))

	_, body = get(t, me, h.srv.URL+loc)
	assert.Contains(t, body, "Listed by maya-renamed")
	res, _ = get(t, me, h.srv.URL+"/users/1")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// the cookie issued before the rename is refused
	replay := h.browser(t)
	replay.Jar.SetCookies(u, stale)
	res, _ = get(t, replay, h.srv.URL+"/users/1")
	assert.Equal(t, "/login", res.Header.Get("Location"))
}
