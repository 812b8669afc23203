package tencent

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/rs/zerolog/log"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	sdkerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/regions"
	client "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/dnspod/v20210323"

	"gatewayipsync/client/provider/settings"
)

const (
	noRecordsCode = "ResourceNotFound.NoDataOfRecord"
	defaultLine   = "默认"
)

type recordAPI interface {
	DescribeRecordList(*client.DescribeRecordListRequest) (*client.DescribeRecordListResponse, error)
	CreateRecord(*client.CreateRecordRequest) (*client.CreateRecordResponse, error)
	ModifyRecord(*client.ModifyRecordRequest) (*client.ModifyRecordResponse, error)
}

type Tencent struct {
	c         recordAPI
	domain    string
	subdomain string
	hostname  string
}

// New expects access_key_id, access_key_secret, domain and subdomain.
func New(conf map[string]any) (*Tencent, error) {
	var values [4]string
	for i, key := range []string{"access_key_id", "access_key_secret", "domain", "subdomain"} {
		v, err := settings.String(conf, key)
		if err != nil {
			return nil, fmt.Errorf("tencent: %w", err)
		}
		values[i] = v
	}
	accessKeyID, accessKeySecret, domain, subdomain := values[0], values[1], values[2], values[3]

	credential := common.NewCredential(accessKeyID, accessKeySecret)
	c, err := client.NewClient(credential, regions.Shanghai, profile.NewClientProfile())
	if err != nil {
		return nil, fmt.Errorf("spawn tencent ddns client: %w", err)
	}
	return newWithAPI(c, domain, subdomain), nil
}

func newWithAPI(api recordAPI, domain, subdomain string) *Tencent {
	return &Tencent{
		c:         api,
		domain:    domain,
		subdomain: subdomain,
		hostname:  fmt.Sprintf("%s.%s", subdomain, domain),
	}
}

func (t *Tencent) Update(addr netip.Addr) error {
	recordType := settings.RecordType(addr.Is6())

	req := client.NewDescribeRecordListRequest()
	req.Domain = common.StringPtr(t.domain)
	req.Subdomain = common.StringPtr(t.subdomain)
	resp, err := t.c.DescribeRecordList(req)
	if err != nil {
		var sdkErr *sdkerrors.TencentCloudSDKError
		if !errors.As(err, &sdkErr) || sdkErr.GetCode() != noRecordsCode {
			return fmt.Errorf("describe %s records: %w", t.hostname, err)
		}
	}

	var record *client.RecordListItem
	if resp != nil && resp.Response != nil {
		for _, r := range resp.Response.RecordList {
			if r.Type != nil && *r.Type == recordType {
				record = r
				break
			}
		}
	}

	if record == nil {
		create := client.NewCreateRecordRequest()
		create.Domain = common.StringPtr(t.domain)
		create.SubDomain = common.StringPtr(t.subdomain)
		create.RecordType = common.StringPtr(recordType)
		create.RecordLine = common.StringPtr(defaultLine)
		create.Value = common.StringPtr(addr.String())
		if _, err := t.c.CreateRecord(create); err != nil {
			return fmt.Errorf("create %s record: %w", t.hostname, err)
		}
		log.Info().Msgf("[tencent]: created %s %s = %s", recordType, t.hostname, addr)
		return nil
	}

	var current string
	if record.Value != nil {
		current = *record.Value
	}
	if current == addr.String() {
		log.Debug().Msgf("[tencent]: %s already points at %s", t.hostname, addr)
		return nil
	}

	modify := client.NewModifyRecordRequest()
	modify.Domain = common.StringPtr(t.domain)
	modify.RecordId = record.RecordId
	modify.RecordLine = record.Line
	modify.RecordType = record.Type
	modify.SubDomain = record.Name
	modify.Value = common.StringPtr(addr.String())
	if _, err := t.c.ModifyRecord(modify); err != nil {
		return fmt.Errorf("modify %s record: %w", t.hostname, err)
	}
	log.Info().Msgf("[tencent]: updated %s %s -> %s", t.hostname, current, addr)
	return nil
}
