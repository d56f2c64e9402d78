package capture

import (
	"regexp"
	"strings"
)

// Record is one packet line as written by the capture producer.
// Record 是抓包程序写出的一行数据包记录。
type Record struct {
	ID       string `json:"id"`
	SrcIP    string `json:"src_ip"`
	DstIP    string `json:"dst_ip"`
	SrcMAC   string `json:"src_mac"`
	DstMAC   string `json:"dst_mac"`
	Protocol string `json:"protocol"`
	Hostname string `json:"hostname"`
}

const (
	ipv4Pattern = `\d{1,3}(?:\.\d{1,3}){3}`
	macPattern  = `[0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5}`
)

// linePattern is the producer's line grammar:
//
//	Packet <id>: <src> -> <dst>, Src MAC: <mac>, Dst MAC: <mac>, Protocol: <n> <annotation>
var linePattern = regexp.MustCompile(`^Packet (\d+): (` + ipv4Pattern + `) -> (` + ipv4Pattern + `), ` +
	`Src MAC: (` + macPattern + `), Dst MAC: (` + macPattern + `), Protocol: (\d+)(?:\s+(.*))?$`)

// Parse turns one line into a Record. ok is false when the line does not match the grammar.
// Parse 将一行解析为 Record，不匹配时 ok 为 false。
func Parse(line string) (Record, bool) {
	m := linePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Record{}, false
	}
	return Record{
		ID:       m[1],
		SrcIP:    m[2],
		DstIP:    m[3],
		SrcMAC:   m[4],
		DstMAC:   m[5],
		Protocol: m[6],
		Hostname: strings.TrimSpace(m[7]),
	}, true
}
