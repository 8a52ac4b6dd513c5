package steam

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"items_seller/internal/domain"
	"items_seller/internal/domain/entity"
	"items_seller/pkg/errcodes"
	"items_seller/pkg/httpx"
	"items_seller/pkg/logx"
)

const (
	defaultBaseURL   = "https://steamcommunity.com"
	defaultAppID     = 730
	defaultContextID = 2

	inventoryPageSize = 1000
	listingsPageSize  = 100

	logFieldMaxLen = 2048
)

// Client — HTTP-реализация TradeClient поверх веб-площадки.
type Client struct {
	creds     Credentials
	http      *http.Client
	jar       *cookiejar.Jar
	sessions  *FileSessionStore
	baseURL   string
	appID     int
	contextID int
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithApp(appID, contextID int) ClientOption {
	return func(c *Client) {
		c.appID = appID
		c.contextID = contextID
	}
}

// NewClient собирает клиент из учётных данных. Если для аккаунта есть
// сохранённая сессия, куки восстанавливаются и полный логин не нужен.
func NewClient(creds Credentials, sessions *FileSessionStore, opts ...ClientOption) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookiejar.New: %w", err)
	}

	c := &Client{
		creds:     creds,
		jar:       jar,
		sessions:  sessions,
		baseURL:   defaultBaseURL,
		appID:     defaultAppID,
		contextID: defaultContextID,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.http = &http.Client{
		Jar: jar,
		Transport: httpx.NewLoggingRoundTripper(
			http.DefaultTransport,
			httpx.WithSensitiveDataMasker(logx.NewSensitiveDataMasker()),
			httpx.WithLogFieldMaxLen(logFieldMaxLen),
		),
		Timeout: 30 * time.Second,
	}

	cookies, err := sessions.Load(creds.Username)
	if err != nil {
		return nil, fmt.Errorf("sessions.Load: %w", err)
	}
	if len(cookies) > 0 {
		base, err := url.Parse(c.baseURL)
		if err != nil {
			return nil, fmt.Errorf("url.Parse: %w", err)
		}
		jar.SetCookies(base, cookies)
	}

	return c, nil
}

// Login проходит полный вход по паролю. Восстановленная сессия делает
// вызов идемпотентным: площадка просто вернёт уже авторизованные куки.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"username": {c.creds.Username},
		"password": {c.creds.Password},
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	if err := c.postForm(ctx, "/login/dologin", form, &resp); err != nil {
		return err
	}

	if !resp.Success {
		return domain.NewError(errcodes.SessionExpired, fmt.Sprintf("login rejected: %s", resp.Message))
	}

	logger(ctx).Info("logged in", "username", c.creds.Username)

	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.postForm(ctx, "/login/logout", url.Values{}, nil)
}

// Close сбрасывает keep-alive соединения. Куки остаются в jar и могут
// быть сохранены до закрытия.
func (c *Client) Close(_ context.Context) error {
	c.http.CloseIdleConnections()
	return nil
}

// SaveSession выгружает текущие куки в файловое хранилище.
func (c *Client) SaveSession() error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("url.Parse: %w", err)
	}

	return c.sessions.Save(c.creds.Username, c.jar.Cookies(base))
}

func (c *Client) WalletBalance(ctx context.Context) (int64, string, error) {
	var resp struct {
		Balance  int64  `json:"wallet_balance"`
		Currency string `json:"wallet_currency"`
	}

	if err := c.get(ctx, "/market/mywallet", nil, &resp); err != nil {
		return 0, "", err
	}

	if resp.Currency == "" {
		resp.Currency = c.creds.Currency
	}

	return resp.Balance, resp.Currency, nil
}

type inventoryPage struct {
	Assets []struct {
		AssetID string `json:"assetid"`
		ClassID string `json:"classid"`
	} `json:"assets"`
	Descriptions []struct {
		ClassID        string `json:"classid"`
		MarketHashName string `json:"market_hash_name"`
		Tradable       int    `json:"tradable"`
		Marketable     int    `json:"marketable"`
	} `json:"descriptions"`
	MoreItems   int    `json:"more_items"`
	LastAssetID string `json:"last_assetid"`
}

// Inventory выкачивает инвентарь постранично до короткой страницы.
func (c *Client) Inventory(ctx context.Context) ([]entity.Item, error) {
	var (
		items []entity.Item
		start string
	)

	for {
		query := url.Values{"count": {strconv.Itoa(inventoryPageSize)}}
		if start != "" {
			query.Set("start_assetid", start)
		}

		var page inventoryPage
		path := fmt.Sprintf("/inventory/%s/%d/%d", c.creds.SteamID, c.appID, c.contextID)
		if err := c.get(ctx, path, query, &page); err != nil {
			return nil, err
		}

		descs := make(map[string]struct {
			name       string
			tradable   bool
			marketable bool
		}, len(page.Descriptions))
		for _, d := range page.Descriptions {
			descs[d.ClassID] = struct {
				name       string
				tradable   bool
				marketable bool
			}{d.MarketHashName, d.Tradable == 1, d.Marketable == 1}
		}

		for _, a := range page.Assets {
			d := descs[a.ClassID]
			items = append(items, entity.Item{
				AssetID:        a.AssetID,
				ClassID:        a.ClassID,
				MarketHashName: d.name,
				Tradable:       d.tradable,
				Marketable:     d.marketable,
			})
		}

		if page.MoreItems != 1 || page.LastAssetID == "" {
			return items, nil
		}
		start = page.LastAssetID
	}
}

type listingsPage struct {
	Listings []struct {
		ListingID string `json:"listingid"`
		Price     int64  `json:"price"`
		Asset     struct {
			ID             string `json:"id"`
			MarketHashName string `json:"market_hash_name"`
		} `json:"asset"`
	} `json:"listings"`
	TotalCount int `json:"total_count"`
}

func (c *Client) ActiveListings(ctx context.Context) ([]entity.Listing, error) {
	var (
		listings []entity.Listing
		offset   int
	)

	for {
		query := url.Values{
			"start": {strconv.Itoa(offset)},
			"count": {strconv.Itoa(listingsPageSize)},
		}

		var page listingsPage
		if err := c.get(ctx, "/market/mylistings", query, &page); err != nil {
			return nil, err
		}

		for _, l := range page.Listings {
			listings = append(listings, entity.Listing{
				ID:             l.ListingID,
				AssetID:        l.Asset.ID,
				MarketHashName: l.Asset.MarketHashName,
				Price:          l.Price,
			})
		}

		offset += len(page.Listings)
		if len(page.Listings) < listingsPageSize || offset >= page.TotalCount {
			return listings, nil
		}
	}
}

func (c *Client) CreateListing(ctx context.Context, assetID string, price int64) (entity.Listing, error) {
	form := url.Values{
		"appid":     {strconv.Itoa(c.appID)},
		"contextid": {strconv.Itoa(c.contextID)},
		"assetid":   {assetID},
		"amount":    {"1"},
		"price":     {strconv.FormatInt(price, 10)},
	}

	var resp struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		ListingID string `json:"listing_id"`
	}

	if err := c.postForm(ctx, "/market/sellitem", form, &resp); err != nil {
		return entity.Listing{}, err
	}

	if !resp.Success {
		if err := classifyStatus(http.StatusOK, []byte(resp.Message)); err != nil {
			return entity.Listing{}, err
		}
		return entity.Listing{}, domain.NewError(errcodes.InternalServerError, fmt.Sprintf("sellitem rejected: %s", resp.Message))
	}

	return entity.Listing{ID: resp.ListingID, AssetID: assetID, Price: price}, nil
}

func (c *Client) CancelListing(ctx context.Context, listingID string) error {
	return c.postForm(ctx, "/market/removelisting/"+listingID, url.Values{}, nil)
}

func (c *Client) ConfirmListing(ctx context.Context, listingID string) error {
	form := url.Values{"op": {"allow"}, "cid": {listingID}}
	return c.postForm(ctx, "/mobileconf/ajaxop", form, nil)
}

// OrderBook возвращает верх стакана. Площадка отдаёт цены строками в
// минорных единицах.
func (c *Client) OrderBook(ctx context.Context, marketHashName string) (entity.OrderBook, error) {
	query := url.Values{
		"market_hash_name": {marketHashName},
		"currency":         {c.creds.Region},
	}

	var resp struct {
		HighestBuyOrder string `json:"highest_buy_order"`
		LowestSellOrder string `json:"lowest_sell_order"`
	}

	if err := c.get(ctx, "/market/itemordershistogram", query, &resp); err != nil {
		return entity.OrderBook{}, err
	}

	book := entity.OrderBook{
		MarketHashName: marketHashName,
		Currency:       c.creds.Currency,
	}

	if resp.HighestBuyOrder != "" {
		v, err := strconv.ParseInt(resp.HighestBuyOrder, 10, 64)
		if err != nil {
			return entity.OrderBook{}, domain.WrapError(err, errcodes.InternalServerError, "parse highest buy order")
		}
		book.HighestBuyOrder = v
	}

	if resp.LowestSellOrder != "" {
		v, err := strconv.ParseInt(resp.LowestSellOrder, 10, 64)
		if err != nil {
			return entity.OrderBook{}, domain.WrapError(err, errcodes.InternalServerError, "parse lowest sell order")
		}
		book.LowestSellOrder = v
	}

	return book, nil
}

func (c *Client) SendTrade(ctx context.Context, tradeURL string, assetIDs []string) (string, error) {
	offer, err := json.Marshal(map[string]any{
		"assets":    assetIDs,
		"appid":     c.appID,
		"contextid": c.contextID,
		"trade_url": tradeURL,
	})
	if err != nil {
		return "", fmt.Errorf("marshal offer: %w", err)
	}

	form := url.Values{"json_tradeoffer": {string(offer)}}

	var resp struct {
		TradeOfferID string `json:"tradeofferid"`
	}

	if err := c.postForm(ctx, "/tradeoffer/new/send", form, &resp); err != nil {
		return "", err
	}

	return resp.TradeOfferID, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("http.NewRequest: %w", err)
	}

	return c.do(req, dest)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("http.NewRequest: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return err
	}

	if dest == nil {
		return nil
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "decode response")
	}

	return nil
}
