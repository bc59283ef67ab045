package baidu

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"disklink/internal/netdisk"
)

func newTestClient(baseURL string) *Client {
	c := NewClient("BDUSS=abc; STOKEN=def")
	c.baseURL = baseURL
	return c
}

func TestParseShare(t *testing.T) {
	c := NewClient("cookie")

	share, err := c.ParseShare("https://pan.baidu.com/s/1AbC_dEf-123?pwd=x9k2")
	if err != nil {
		t.Fatalf("合法链接解析失败: %v", err)
	}
	if share.ShareID != "1AbC_dEf-123" {
		t.Fatalf("期望ShareID=1AbC_dEf-123, 得到 %s", share.ShareID)
	}
	if share.Password != "x9k2" {
		t.Fatalf("期望Password=x9k2, 得到 %s", share.Password)
	}
}

func TestParseShareInvalid(t *testing.T) {
	c := NewClient("cookie")

	for _, rawURL := range []string{
		"https://pan.quark.cn/s/abc",
		"not a url",
		"",
	} {
		if _, err := c.ParseShare(rawURL); !errors.Is(err, netdisk.ErrInvalidLinkFormat) {
			t.Fatalf("非法链接 %q 期望ErrInvalidLinkFormat, 得到 %v", rawURL, err)
		}
	}
}

// 转存目录的默认列表,按时间倒序
const defaultListJSON = `{"errno":0,"list":[
	{"fs_id":333,"server_filename":"电影.mkv","isdir":0},
	{"fs_id":444,"server_filename":"字幕","isdir":1},
	{"fs_id":555,"server_filename":"无关文件.txt","isdir":0}
]}`

// baiduStub 模拟百度接口的完整转存流程
func baiduStub(t *testing.T, listJSON string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/gettemplatevariable", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errno":0,"result":{"bdstoken":"token123"}}`))
	})
	mux.HandleFunc("/share/verify", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errno":0,"randsk":"sk123"}`))
	})
	mux.HandleFunc("/s/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><script>locals = {"shareid":8888,"` +
			`share_uk":"7777","file_list":[` +
			`{"fs_id":111,"server_filename":"电影.mkv","isdir":0,"x":1},` +
			`{"fs_id":222,"server_filename":"字幕","isdir":1,"x":1}]}</script></html>`))
	})
	mux.HandleFunc("/share/transfer", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errno":0}`))
	})
	mux.HandleFunc("/api/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listJSON))
	})
	mux.HandleFunc("/share/set", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errno":0,"link":"https://pan.baidu.com/s/1newshare"}`))
	})
	mux.HandleFunc("/api/quota", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errno":0}`))
	})

	return httptest.NewServer(mux)
}

func TestListFilesScrapesSharePage(t *testing.T) {
	server := baiduStub(t, defaultListJSON)
	defer server.Close()

	c := newTestClient(server.URL)
	share, _ := c.ParseShare("https://pan.baidu.com/s/1abc?pwd=1234")

	files, err := c.ListFiles(context.Background(), share)
	if err != nil {
		t.Fatalf("枚举文件失败: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("期望2个文件, 得到 %d", len(files))
	}
	if files[0].ID != "111" || files[0].Name != "电影.mkv" || files[0].IsDir {
		t.Fatalf("文件1解析不符: %+v", files[0])
	}
	if files[1].ID != "222" || !files[1].IsDir {
		t.Fatalf("文件2解析不符: %+v", files[1])
	}
	if share.Extra["shareid"] != "8888" || share.Extra["share_uk"] != "7777" {
		t.Fatalf("转存参数提取不符: %+v", share.Extra)
	}
	// 提取码验证成功后randsk写入cookie
	if !strings.Contains(c.cookie, "BDCLND=sk123") {
		t.Fatalf("cookie未包含BDCLND: %s", c.cookie)
	}
}

func TestSaveFilesMatchesByName(t *testing.T) {
	server := baiduStub(t, defaultListJSON)
	defer server.Close()

	c := newTestClient(server.URL)
	share, _ := c.ParseShare("https://pan.baidu.com/s/1abc")

	files, err := c.ListFiles(context.Background(), share)
	if err != nil {
		t.Fatalf("枚举文件失败: %v", err)
	}

	result, err := c.SaveFiles(context.Background(), share, files)
	if err != nil {
		t.Fatalf("转存失败: %v", err)
	}
	// 目录里的"无关文件.txt"不在分享里,不应被计入
	if len(result.SavedIDs) != 2 {
		t.Fatalf("期望2个转存结果, 得到 %v", result.SavedIDs)
	}
}

func TestSaveFilesToleratesRenamedCopies(t *testing.T) {
	// 目录里已有同名文件时newcopy会落盘成"电影(1).mkv",列表按时间倒序
	server := baiduStub(t, `{"errno":0,"list":[
		{"fs_id":666,"server_filename":"电影(1).mkv","isdir":0},
		{"fs_id":444,"server_filename":"字幕","isdir":1},
		{"fs_id":333,"server_filename":"电影.mkv","isdir":0},
		{"fs_id":555,"server_filename":"无关文件.txt","isdir":0}
	]}`)
	defer server.Close()

	c := newTestClient(server.URL)
	share, _ := c.ParseShare("https://pan.baidu.com/s/1abc")

	files, err := c.ListFiles(context.Background(), share)
	if err != nil {
		t.Fatalf("枚举文件失败: %v", err)
	}

	result, err := c.SaveFiles(context.Background(), share, files)
	if err != nil {
		t.Fatalf("转存失败: %v", err)
	}
	if len(result.SavedIDs) != 2 {
		t.Fatalf("期望2个转存结果, 得到 %v", result.SavedIDs)
	}
	// 同名文件只取最新一条,即改名后的副本
	if result.SavedIDs[0] != "666" {
		t.Fatalf("应匹配改名副本666, 得到 %v", result.SavedIDs)
	}
}

func TestSavedNameMatches(t *testing.T) {
	cases := []struct {
		saved string
		want  string
		match bool
	}{
		{"电影.mkv", "电影.mkv", true},
		{"电影(1).mkv", "电影.mkv", true},
		{"电影(12).mkv", "电影.mkv", true},
		{"字幕(1)", "字幕", true},
		{"电影2.mkv", "电影.mkv", false},
		{"电影(1).mp4", "电影.mkv", false},
		{"别的电影.mkv", "电影.mkv", false},
	}
	for _, tc := range cases {
		if got := savedNameMatches(tc.saved, tc.want); got != tc.match {
			t.Errorf("savedNameMatches(%q, %q) = %v, 期望 %v", tc.saved, tc.want, got, tc.match)
		}
	}
}

func TestCreateShare(t *testing.T) {
	server := baiduStub(t, defaultListJSON)
	defer server.Close()

	c := newTestClient(server.URL)

	url, err := c.CreateShare(context.Background(), []string{"333"}, 72)
	if err != nil {
		t.Fatalf("创建分享失败: %v", err)
	}
	if !strings.HasPrefix(url, "https://pan.baidu.com/s/1newshare?pwd=") {
		t.Fatalf("分享链接格式不符: %s", url)
	}
	if len(url) != len("https://pan.baidu.com/s/1newshare?pwd=")+4 {
		t.Fatalf("提取码应为4位: %s", url)
	}
}

func TestValidateCredentialsAuthExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errno":-6}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if err := c.ValidateCredentials(context.Background()); !errors.Is(err, netdisk.ErrAuthExpired) {
		t.Fatalf("errno=-6期望ErrAuthExpired, 得到 %v", err)
	}
}

func TestPeriodFromHours(t *testing.T) {
	cases := []struct {
		hours int
		want  int
	}{
		{1, 1},
		{24, 1},
		{72, 7},
		{168, 7},
		{720, 30},
		{8760, 0},
	}
	for _, tc := range cases {
		if got := periodFromHours(tc.hours); got != tc.want {
			t.Errorf("periodFromHours(%d) = %d, 期望 %d", tc.hours, got, tc.want)
		}
	}
}
