package baidu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"disklink/internal/model"
	"disklink/internal/netdisk"
)

var (
	shareURLPattern = regexp.MustCompile(`pan\.baidu\.com/s/([a-zA-Z0-9_-]+)`)
	passwordPattern = regexp.MustCompile(`[?&]pwd=([a-zA-Z0-9]+)`)

	// 分享页内嵌JSON的抓取正则
	shareIDPattern  = regexp.MustCompile(`"shareid":(\d+?),"`)
	shareUKPattern  = regexp.MustCompile(`"share_uk":"(\d+?)",`)
	fsIDPattern     = regexp.MustCompile(`"fs_id":(\d+?),`)
	fileNamePattern = regexp.MustCompile(`"server_filename":"(.+?)",`)
	isDirPattern    = regexp.MustCompile(`"isdir":(\d+?),`)

	// ondup=newcopy重名时追加的"(1)"后缀
	dupSuffixPattern = regexp.MustCompile(`^\(\d+\)$`)
)

// 转存文件落盘的目录名
const savePath = "disklink"

// Client 百度网盘客户端
type Client struct {
	cookie     string
	httpClient *http.Client
	baseURL    string
	bdstoken   string
}

// NewClient 创建百度网盘客户端
func NewClient(cookie string) *Client {
	return &Client{
		cookie:  cookie,
		baseURL: "https://pan.baidu.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name 获取网盘名称
func (c *Client) Name() string {
	return model.DiskTypeBaidu
}

// IsConfigured 检查是否已配置凭证
func (c *Client) IsConfigured() bool {
	return c.cookie != ""
}

// ParseShare 解析百度分享链接
// 示例: https://pan.baidu.com/s/1AbCdEfG?pwd=x9k2
func (c *Client) ParseShare(rawURL string) (*model.ShareInfo, error) {
	m := shareURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, netdisk.ErrInvalidLinkFormat
	}

	password := ""
	if pm := passwordPattern.FindStringSubmatch(rawURL); pm != nil {
		password = pm[1]
	}

	return model.NewShareInfo(m[1], password, rawURL), nil
}

// ListFiles 枚举分享中的顶层文件
// 百度没有公开的分享列表接口,从分享页HTML内嵌的JSON中抓取
func (c *Client) ListFiles(ctx context.Context, share *model.ShareInfo) ([]model.FileRef, error) {
	if err := c.ensureBdstoken(ctx); err != nil {
		return nil, err
	}

	if share.Password != "" {
		randsk, err := c.verifyPassCode(ctx, share.ShareID, share.Password)
		if err != nil {
			return nil, err
		}
		c.updateCookie(randsk)
	}

	body, err := c.fetchSharePage(ctx, share.ShareID)
	if err != nil {
		return nil, err
	}

	shareIDs := firstGroups(shareIDPattern, body)
	shareUKs := firstGroups(shareUKPattern, body)
	fsIDs := firstGroups(fsIDPattern, body)
	fileNames := firstGroups(fileNamePattern, body)
	isDirs := firstGroups(isDirPattern, body)

	if len(shareIDs) == 0 || len(shareUKs) == 0 {
		return nil, &netdisk.ResponseParseError{
			Cause: fmt.Errorf("分享页中未找到shareid/share_uk"),
			Body:  truncate(body, 200),
		}
	}

	share.Extra["shareid"] = shareIDs[0]
	share.Extra["share_uk"] = shareUKs[0]

	files := make([]model.FileRef, 0, len(fsIDs))
	seen := make(map[string]bool)
	for i, id := range fsIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		f := model.FileRef{ID: id}
		if i < len(fileNames) {
			f.Name = fileNames[i]
		}
		if i < len(isDirs) {
			f.IsDir = isDirs[i] == "1"
		}
		files = append(files, f)
	}

	if len(files) == 0 {
		return nil, netdisk.ErrNoFilesFound
	}

	return files, nil
}

// SaveFiles 批量转存到自己的网盘目录
// 百度的transfer是同步接口,完成后重新列目录拿到落盘的fs_id
func (c *Client) SaveFiles(ctx context.Context, share *model.ShareInfo, files []model.FileRef) (*model.SaveResult, error) {
	if err := c.ensureBdstoken(ctx); err != nil {
		return nil, err
	}

	if err := c.ensureDir(ctx, savePath); err != nil {
		return nil, fmt.Errorf("创建转存目录失败: %w", err)
	}

	fsIDs := make([]string, 0, len(files))
	for _, f := range files {
		fsIDs = append(fsIDs, f.ID)
	}

	params := url.Values{
		"shareid":    {share.Extra["shareid"]},
		"from":       {share.Extra["share_uk"]},
		"ondup":      {"newcopy"},
		"async":      {"1"},
		"channel":    {"chunlei"},
		"web":        {"1"},
		"app_id":     {"250528"},
		"bdstoken":   {c.bdstoken},
		"logid":      {""},
		"clienttype": {"0"},
	}

	// fsidlist是JSON数组字符串,path必须以/开头
	body := url.Values{
		"fsidlist": {"[" + strings.Join(fsIDs, ",") + "]"},
		"path":     {"/" + savePath},
	}

	var result struct {
		Errno int `json:"errno"`
	}

	if err := c.doRequest(ctx, "POST", "/share/transfer", params, body, &result); err != nil {
		return nil, err
	}
	if err := c.checkErrno(result.Errno); err != nil {
		saveResult := &model.SaveResult{}
		for _, f := range files {
			saveResult.Failed = append(saveResult.Failed, model.SaveFailure{File: f, Reason: err.Error()})
		}
		return saveResult, nil
	}

	// 按文件名匹配刚转存进来的文件
	// 目录按时间倒序,每个源文件只取最新的一条
	saved, err := c.listDir(ctx, "/"+savePath)
	if err != nil {
		return nil, fmt.Errorf("列出转存目录失败: %w", err)
	}

	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		wanted[f.Name] = true
	}

	saveResult := &model.SaveResult{}
	matched := make(map[string]bool, len(files))
	for _, f := range saved {
		for name := range wanted {
			if matched[name] || !savedNameMatches(f.ServerFilename, name) {
				continue
			}
			matched[name] = true
			saveResult.SavedIDs = append(saveResult.SavedIDs, fmt.Sprintf("%d", f.FsID))
			break
		}
	}

	return saveResult, nil
}

// savedNameMatches 判断转存目录里的文件名是否对应源文件名
// 目录中已有同名文件时,newcopy会把落盘文件命名成"xxx(1).mp4"
func savedNameMatches(saved, want string) bool {
	if saved == want {
		return true
	}
	ext := path.Ext(want)
	base := strings.TrimSuffix(want, ext)
	if !strings.HasPrefix(saved, base) || !strings.HasSuffix(saved, ext) {
		return false
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(saved, base), ext)
	return dupSuffixPattern.MatchString(middle)
}

// CreateShare 对转存后的文件创建新分享,返回带提取码的链接
func (c *Client) CreateShare(ctx context.Context, fileIDs []string, expireHours int) (string, error) {
	if len(fileIDs) == 0 {
		return "", netdisk.ErrShareCreationFailed
	}

	if err := c.ensureBdstoken(ctx); err != nil {
		return "", err
	}

	params := url.Values{
		"channel":    {"chunlei"},
		"web":        {"1"},
		"app_id":     {"250528"},
		"bdstoken":   {c.bdstoken},
		"logid":      {""},
		"clienttype": {"0"},
	}

	password := randPassCode()
	body := url.Values{
		"fid_list":     {"[" + strings.Join(fileIDs, ",") + "]"},
		"schannel":     {"4"},
		"channel_list": {"[]"},
		"period":       {fmt.Sprintf("%d", periodFromHours(expireHours))},
		"pwd":          {password},
	}

	var result struct {
		Errno int    `json:"errno"`
		Link  string `json:"link"`
	}

	if err := c.doRequest(ctx, "POST", "/share/set", params, body, &result); err != nil {
		return "", err
	}
	if err := c.checkErrno(result.Errno); err != nil {
		return "", fmt.Errorf("%w: %v", netdisk.ErrShareCreationFailed, err)
	}
	if result.Link == "" {
		return "", netdisk.ErrShareCreationFailed
	}

	return result.Link + "?pwd=" + password, nil
}

// DeleteShare 撤销分享,在自己的分享记录中匹配链接
func (c *Client) DeleteShare(ctx context.Context, shareURL string) error {
	m := shareURLPattern.FindStringSubmatch(shareURL)
	if m == nil {
		return netdisk.ErrInvalidLinkFormat
	}
	surl := m[1]

	if err := c.ensureBdstoken(ctx); err != nil {
		return err
	}

	params := url.Values{
		"page":       {"1"},
		"desc":       {"1"},
		"order":      {"time"},
		"num":        {"100"},
		"channel":    {"chunlei"},
		"web":        {"1"},
		"app_id":     {"250528"},
		"bdstoken":   {c.bdstoken},
		"logid":      {""},
		"clienttype": {"0"},
	}

	var listResult struct {
		Errno int `json:"errno"`
		List  []struct {
			ShareID  int64  `json:"shareId"`
			Shorturl string `json:"shorturl"`
		} `json:"list"`
	}

	if err := c.doRequest(ctx, "GET", "/share/record", params, nil, &listResult); err != nil {
		return err
	}
	if err := c.checkErrno(listResult.Errno); err != nil {
		return fmt.Errorf("获取分享记录失败: %w", err)
	}

	var shareID int64
	for _, s := range listResult.List {
		if strings.Contains(s.Shorturl, surl) {
			shareID = s.ShareID
			break
		}
	}
	if shareID == 0 {
		// 分享已不存在,视为删除成功
		return nil
	}

	cancelParams := url.Values{
		"channel":    {"chunlei"},
		"web":        {"1"},
		"app_id":     {"250528"},
		"bdstoken":   {c.bdstoken},
		"logid":      {""},
		"clienttype": {"0"},
	}

	body := url.Values{
		"shareid_list": {fmt.Sprintf("[%d]", shareID)},
	}

	var cancelResult struct {
		Errno int `json:"errno"`
	}

	if err := c.doRequest(ctx, "POST", "/share/cancel", cancelParams, body, &cancelResult); err != nil {
		return err
	}
	if err := c.checkErrno(cancelResult.Errno); err != nil {
		return fmt.Errorf("取消分享失败: %w", err)
	}

	return nil
}

// ValidateCredentials 通过查询配额接口验证Cookie是否有效
func (c *Client) ValidateCredentials(ctx context.Context) error {
	params := url.Values{
		"checkfree":   {"1"},
		"checkexpire": {"1"},
		"channel":     {"chunlei"},
		"web":         {"1"},
		"app_id":      {"250528"},
		"clienttype":  {"0"},
	}

	var result struct {
		Errno int `json:"errno"`
	}

	if err := c.doRequest(ctx, "GET", "/api/quota", params, nil, &result); err != nil {
		return err
	}

	return c.checkErrno(result.Errno)
}

// ensureBdstoken 获取并缓存bdstoken
func (c *Client) ensureBdstoken(ctx context.Context) error {
	if c.bdstoken != "" {
		return nil
	}

	params := url.Values{
		"clienttype": {"0"},
		"app_id":     {"38824127"},
		"web":        {"1"},
		"fields":     {`["bdstoken","token","uk","isdocuser","servertime"]`},
	}

	// result字段可能是对象或数组,用map接收
	var result map[string]interface{}
	if err := c.doRequest(ctx, "GET", "/api/gettemplatevariable", params, nil, &result); err != nil {
		return err
	}

	errno, _ := result["errno"].(float64)
	if err := c.checkErrno(int(errno)); err != nil {
		return fmt.Errorf("获取bdstoken失败: %w", err)
	}

	if data, ok := result["result"].(map[string]interface{}); ok {
		if token, ok := data["bdstoken"].(string); ok && token != "" {
			c.bdstoken = token
			return nil
		}
	}

	return fmt.Errorf("无法从响应中提取bdstoken")
}

// verifyPassCode 验证提取码,返回randsk
func (c *Client) verifyPassCode(ctx context.Context, surl, password string) (string, error) {
	// 验证接口的surl不带开头的1
	if strings.HasPrefix(surl, "1") {
		surl = surl[1:]
	}

	params := url.Values{
		"surl":       {surl},
		"bdstoken":   {c.bdstoken},
		"t":          {fmt.Sprintf("%d", time.Now().UnixMilli())},
		"channel":    {"chunlei"},
		"web":        {"1"},
		"clienttype": {"0"},
	}

	body := url.Values{
		"pwd":       {password},
		"vcode":     {""},
		"vcode_str": {""},
	}

	var result struct {
		Errno  int    `json:"errno"`
		Randsk string `json:"randsk"`
	}

	if err := c.doRequest(ctx, "POST", "/share/verify", params, body, &result); err != nil {
		return "", err
	}
	if err := c.checkErrno(result.Errno); err != nil {
		return "", fmt.Errorf("验证提取码失败: %w", err)
	}

	return result.Randsk, nil
}

// updateCookie 将randsk写入Cookie的BDCLND字段
func (c *Client) updateCookie(randsk string) {
	cookieMap := make(map[string]string)
	order := make([]string, 0)
	for _, pair := range strings.Split(c.cookie, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			if _, exists := cookieMap[parts[0]]; !exists {
				order = append(order, parts[0])
			}
			cookieMap[parts[0]] = parts[1]
		}
	}

	if _, exists := cookieMap["BDCLND"]; !exists {
		order = append(order, "BDCLND")
	}
	cookieMap["BDCLND"] = randsk

	parts := make([]string, 0, len(order))
	for _, key := range order {
		parts = append(parts, key+"="+cookieMap[key])
	}
	c.cookie = strings.Join(parts, "; ")
}

// fetchSharePage 拉取分享页HTML
func (c *Client) fetchSharePage(ctx context.Context, surl string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/s/"+surl, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求分享页失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &netdisk.TransportError{Status: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	return string(body), nil
}

// listDir 列出指定目录下的文件
func (c *Client) listDir(ctx context.Context, dir string) ([]fileInfo, error) {
	params := url.Values{
		"order":      {"time"},
		"desc":       {"1"},
		"showempty":  {"0"},
		"web":        {"1"},
		"page":       {"1"},
		"num":        {"100"},
		"dir":        {dir},
		"t":          {fmt.Sprintf("%d", time.Now().UnixMilli())},
		"channel":    {"chunlei"},
		"app_id":     {"250528"},
		"bdstoken":   {c.bdstoken},
		"logid":      {""},
		"clienttype": {"0"},
	}

	var result struct {
		Errno int        `json:"errno"`
		List  []fileInfo `json:"list"`
	}

	if err := c.doRequest(ctx, "GET", "/api/list", params, nil, &result); err != nil {
		return nil, err
	}
	if err := c.checkErrno(result.Errno); err != nil {
		return nil, err
	}

	return result.List, nil
}

// ensureDir 确保转存目录存在
func (c *Client) ensureDir(ctx context.Context, dir string) error {
	if _, err := c.listDir(ctx, "/"+dir); err == nil {
		return nil
	}

	params := url.Values{
		"a":          {"commit"},
		"channel":    {"chunlei"},
		"web":        {"1"},
		"app_id":     {"250528"},
		"bdstoken":   {c.bdstoken},
		"logid":      {""},
		"clienttype": {"0"},
	}

	body := url.Values{
		"path":       {"/" + dir},
		"isdir":      {"1"},
		"block_list": {"[]"},
	}

	var result struct {
		Errno int `json:"errno"`
	}

	if err := c.doRequest(ctx, "POST", "/api/create", params, body, &result); err != nil {
		return err
	}

	return c.checkErrno(result.Errno)
}

// checkErrno 将百度的错误码映射为固定错误
func (c *Client) checkErrno(errno int) error {
	switch errno {
	case 0:
		return nil
	case -6, -9:
		return netdisk.ErrAuthExpired
	default:
		return fmt.Errorf("百度接口返回错误码: %d", errno)
	}
}

// doRequest 执行HTTP请求,POST使用form编码
func (c *Client) doRequest(ctx context.Context, method, path string, params, body url.Values, result interface{}) error {
	urlStr := c.baseURL + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}

	var reqBody io.Reader
	if method == "POST" && body != nil {
		reqBody = strings.NewReader(body.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	c.setHeaders(req)
	if method == "POST" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return netdisk.ErrAuthExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &netdisk.TransportError{Status: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	// 返回HTML说明触发了安全验证
	bodyStr := string(respBody)
	if strings.Contains(bodyStr, "<html") || strings.Contains(bodyStr, "<!DOCTYPE") {
		return fmt.Errorf("触发百度安全验证,请稍后重试或更新Cookie")
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &netdisk.ResponseParseError{Cause: err, Body: truncate(bodyStr, 200)}
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Referer", "https://pan.baidu.com/disk/main")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Cookie", c.cookie)
}

type fileInfo struct {
	FsID           int64  `json:"fs_id"`
	ServerFilename string `json:"server_filename"`
	IsDir          int    `json:"isdir"`
}

// periodFromHours 将有效期小时数换算成百度的天数,0表示永久
func periodFromHours(hours int) int {
	if hours <= 0 {
		return 0
	}
	days := (hours + 23) / 24
	// 百度只支持1天/7天/30天/永久
	switch {
	case days <= 1:
		return 1
	case days <= 7:
		return 7
	case days <= 30:
		return 30
	default:
		return 0
	}
}

// firstGroups 提取正则所有匹配的第一个分组
func firstGroups(re *regexp.Regexp, s string) []string {
	matches := re.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, m[1])
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

const passCodeChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// randPassCode 生成4位随机提取码
func randPassCode() string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = passCodeChars[rand.Intn(len(passCodeChars))]
	}
	return string(b)
}
