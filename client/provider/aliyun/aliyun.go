package aliyun

import (
	"fmt"
	"net/netip"

	alidns20150109 "github.com/alibabacloud-go/alidns-20150109/v4/client"
	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/rs/zerolog/log"

	"gatewayipsync/client/provider/settings"
)

type recordAPI interface {
	DescribeDomainRecords(*alidns20150109.DescribeDomainRecordsRequest) (*alidns20150109.DescribeDomainRecordsResponse, error)
	UpdateDomainRecord(*alidns20150109.UpdateDomainRecordRequest) (*alidns20150109.UpdateDomainRecordResponse, error)
	AddDomainRecord(*alidns20150109.AddDomainRecordRequest) (*alidns20150109.AddDomainRecordResponse, error)
}

type AliyunDDNSClient struct {
	client recordAPI

	domain    string
	recordKey string
	hostname  string
}

// New expects access_key_id, access_key_secret, domain and record_key.
func New(conf map[string]any) (*AliyunDDNSClient, error) {
	var values [4]string
	for i, key := range []string{"access_key_id", "access_key_secret", "domain", "record_key"} {
		v, err := settings.String(conf, key)
		if err != nil {
			return nil, fmt.Errorf("aliyun: %w", err)
		}
		values[i] = v
	}
	secretID, secretKey, domain, recordKey := values[0], values[1], values[2], values[3]

	api, err := alidns20150109.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(secretID),
		AccessKeySecret: tea.String(secretKey),
		Endpoint:        tea.String("alidns.aliyuncs.com"),
	})
	if err != nil {
		return nil, fmt.Errorf("spawn aliyun ddns client: %w", err)
	}
	return newWithAPI(api, domain, recordKey), nil
}

func newWithAPI(api recordAPI, domain, recordKey string) *AliyunDDNSClient {
	return &AliyunDDNSClient{
		client:    api,
		domain:    domain,
		recordKey: recordKey,
		hostname:  fmt.Sprintf("%s.%s", recordKey, domain),
	}
}

func (c *AliyunDDNSClient) Update(ip netip.Addr) error {
	recordType := settings.RecordType(ip.Is6())

	resp, err := c.client.DescribeDomainRecords(&alidns20150109.DescribeDomainRecordsRequest{
		DomainName: tea.String(c.domain),
		RRKeyWord:  tea.String(c.recordKey),
		Type:       tea.String(recordType),
	})
	if err != nil {
		return fmt.Errorf("describe %s records: %w", c.hostname, err)
	}

	var records []*alidns20150109.DescribeDomainRecordsResponseBodyDomainRecordsRecord
	if resp.Body != nil && resp.Body.DomainRecords != nil {
		records = resp.Body.DomainRecords.Record
	}

	if len(records) == 0 {
		_, err = c.client.AddDomainRecord(&alidns20150109.AddDomainRecordRequest{
			DomainName: tea.String(c.domain),
			RR:         tea.String(c.recordKey),
			Type:       tea.String(recordType),
			Value:      tea.String(ip.String()),
		})
		if err != nil {
			return fmt.Errorf("add %s record: %w", c.hostname, err)
		}
		log.Info().Msgf("[aliyun]: created %s %s = %s", recordType, c.hostname, ip)
		return nil
	}

	existing := records[0]
	if tea.StringValue(existing.Value) == ip.String() {
		log.Debug().Msgf("[aliyun]: %s already points at %s", c.hostname, ip)
		return nil
	}

	_, err = c.client.UpdateDomainRecord(&alidns20150109.UpdateDomainRecordRequest{
		RecordId: existing.RecordId,
		RR:       tea.String(c.recordKey),
		Type:     tea.String(recordType),
		Value:    tea.String(ip.String()),
	})
	if err != nil {
		return fmt.Errorf("update %s record: %w", c.hostname, err)
	}
	log.Info().Msgf("[aliyun]: updated %s %s -> %s", c.hostname, tea.StringValue(existing.Value), ip)
	return nil
}
