package firmware

import (
	"crypto/sha1"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/conflict"
	"github.com/specialistvlad/mcugraph/internal/errcode"
)

// Info device constants.
const (
	InfoName   = "info"
	InfoDevID  = 0
	TypeInfo   = "INFO_DEV_TYPE_INFO"
	TypeNone   = "INFO_DEV_TYPE_NONE"
	HintNone   = "INFO_DEV_HINT_NONE"
	hintField  = "hint"
	uuidFormat = "0x%02X"
)

var hints = map[string]string{
	"":         HintNone,
	"gsmmodem": "INFO_DEV_HINT_GSM_MODEM",
}

// Entry is one row of the device table the info device publishes.
type Entry struct {
	DevID int    `json:"dev_id"`
	Type  string `json:"type"`
	Hint  string `json:"hint"`
	Name  string `json:"name"`
}

func (e Entry) String() string {
	return fmt.Sprintf(`{ %s, %s, (const char*)"%s" }`, e.Type, e.Hint, e.Name)
}

// Info builds the device table served by the info device.
type Info struct {
	profile *catalog.Profile
	devices map[int64]Entry
}

// NewInfo creates the table with the info device itself at address 0.
func NewInfo(p *catalog.Profile) *Info {
	i := &Info{profile: p, devices: make(map[int64]Entry)}
	i.devices[InfoDevID] = Entry{DevID: InfoDevID, Type: TypeInfo, Hint: HintNone, Name: InfoName}
	return i
}

// DevID is the info device's own id claim.
func (i *Info) DevID() conflict.DevID {
	return conflict.DevID{Owner: InfoName, Value: int64(InfoDevID)}
}

// Add records a device under its dev_id. Ids that are not integers inside
// the address range are left out of the table; the dev_id checks report them.
func (i *Info) Add(dev *config.Device, devType string) error {
	hint := ""
	if v, ok := dev.Field(hintField); ok {
		s, isString := config.AsString(v)
		if !isString {
			return errcode.New(errcode.StructuralValidation, dev.Name,
				"Device %s specifies unknown hint value (%v)", dev.Name, v)
		}
		hint = s
	}
	tag, ok := hints[hint]
	if !ok {
		return errcode.New(errcode.StructuralValidation, dev.Name,
			"Device %s specifies unknown hint value (%s)", dev.Name, hint)
	}
	id, ok := config.AsInt(dev.DevID)
	if !ok || id < 0 || id > int64(i.profile.MaxAddress) {
		return nil
	}
	i.devices[id] = Entry{DevID: int(id), Type: devType, Hint: tag, Name: dev.Name}
	return nil
}

// Identity is the info device's output.
type Identity struct {
	ProjectName string         `json:"project_name"`
	UUID        string         `json:"uuid"`
	UUIDLen     int            `json:"uuid_len"`
	Devices     []Entry        `json:"devices"`
	Vocabulary  *config.Object `json:"vocabulary"`
}

// Finalize lays out the table over the whole address range and fingerprints
// the configuration.
func (i *Info) Finalize(doc *config.Document) (*Identity, error) {
	uuid, n, err := UUID(doc.Raw)
	if err != nil {
		return nil, err
	}
	id := &Identity{
		ProjectName: doc.Firmware.DeviceName,
		UUID:        uuid,
		UUIDLen:     n,
		Vocabulary:  config.NewObject(),
	}
	rows := make([]string, 0, i.profile.MaxAddress+1)
	for addr := 0; addr <= i.profile.MaxAddress; addr++ {
		e, ok := i.devices[int64(addr)]
		if !ok {
			e = Entry{DevID: addr, Type: TypeNone, Hint: HintNone}
		}
		id.Devices = append(id.Devices, e)
		rows = append(rows, e.String())
	}

	v := id.Vocabulary
	v.Set("__INFO_UUID__", id.UUID)
	v.Set("__INFO_UUID_LEN__", int64(id.UUIDLen))
	v.Set("__INFO_DEVICES_NUMBER__", int64(len(id.Devices)))
	v.Set("__INFO_DEVICES__", strings.Join(rows, ",\\\n"))
	v.Set("__INFO_PROJECT_NAME__", id.ProjectName)
	return id, nil
}

// UUID is the SHA-1 of the configuration encoded as JSON with sorted keys,
// rendered as a C byte list.
func UUID(raw *config.Object) (string, int, error) {
	data, err := json.Marshal(raw.Plain())
	if err != nil {
		return "", 0, fmt.Errorf("encoding configuration: %w", err)
	}
	sum := sha1.Sum(data)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf(uuidFormat, b)
	}
	return strings.Join(parts, ", "), len(sum), nil
}
