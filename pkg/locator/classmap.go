package locator

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/guilocator/pkg/core"
)

// ClassMapping relates a canonical widget name to its class on each toolkit.
type ClassMapping struct {
	Canonical string `yaml:"canonical"`
	Swing     string `yaml:"swing"`
	SWT       string `yaml:"swt"`
}

func (m ClassMapping) target(tk core.Toolkit) string {
	if tk.UsesSWTWidgets() {
		return m.SWT
	}
	return m.Swing
}

func (m ClassMapping) other(tk core.Toolkit) string {
	if tk.UsesSWTWidgets() {
		return m.Swing
	}
	return m.SWT
}

// builtinMappings is the widget taxonomy shared by Swing and SWT. Several
// Swing widgets share an SWT class that differs only by style bits; the SWT
// column uses the style-qualified name the agent reports.
var builtinMappings = []ClassMapping{
	{"Button", "JButton", "Button"},
	{"ToggleButton", "JToggleButton", "ToggleButton"},
	{"TextField", "JTextField", "Text"},
	{"TextArea", "JTextArea", "StyledText"},
	{"PasswordField", "JPasswordField", "Text"},
	{"FormattedTextField", "JFormattedTextField", "Text"},
	{"EditorPane", "JEditorPane", "StyledText"},
	{"TextPane", "JTextPane", "StyledText"},
	{"CheckBox", "JCheckBox", "CheckBox"},
	{"RadioButton", "JRadioButton", "RadioButton"},
	{"ComboBox", "JComboBox", "Combo"},
	{"List", "JList", "List"},
	{"Table", "JTable", "Table"},
	{"Tree", "JTree", "Tree"},
	{"Label", "JLabel", "Label"},
	{"ProgressBar", "JProgressBar", "ProgressBar"},
	{"Panel", "JPanel", "Composite"},
	{"ScrollPane", "JScrollPane", "ScrolledComposite"},
	{"SplitPane", "JSplitPane", "SashForm"},
	{"TabFolder", "JTabbedPane", "TabFolder"},
	{"LayeredPane", "JLayeredPane", "Composite"},
	{"MenuBar", "JMenuBar", "MenuBar"},
	{"Menu", "JMenu", "Menu"},
	{"MenuItem", "JMenuItem", "MenuItem"},
	{"PopupMenu", "JPopupMenu", "PopupMenu"},
	{"CheckMenuItem", "JCheckBoxMenuItem", "CheckMenuItem"},
	{"RadioMenuItem", "JRadioButtonMenuItem", "RadioMenuItem"},
	{"ToolBar", "JToolBar", "ToolBar"},
	{"Slider", "JSlider", "Slider"},
	{"Spinner", "JSpinner", "Spinner"},
	{"ScrollBar", "JScrollBar", "ScrollBar"},
	{"Window", "JFrame", "Shell"},
	{"Dialog", "JDialog", "Shell"},
	{"InternalFrame", "JInternalFrame", "Shell"},
	{"FileChooser", "JFileChooser", "FileDialog"},
	{"ColorChooser", "JColorChooser", "ColorDialog"},
	{"MessageDialog", "JOptionPane", "MessageBox"},
	{"Separator", "JSeparator", "Separator"},
}

// ClassMap translates widget class names per toolkit. Lookups are
// case-insensitive; unknown names pass through unchanged. A ClassMap is
// read-only after construction and safe for concurrent use.
type ClassMap struct {
	mappings []ClassMapping
	tables   map[core.Toolkit]map[string]string
}

// NewClassMap builds a ClassMap. Earlier mappings win when names collide.
func NewClassMap(mappings []ClassMapping) *ClassMap {
	m := &ClassMap{
		mappings: mappings,
		tables:   make(map[core.Toolkit]map[string]string, len(core.Toolkits)),
	}
	for _, tk := range core.Toolkits {
		m.tables[tk] = buildTable(mappings, tk)
	}
	return m
}

// buildTable resolves every known spelling to the toolkit's class name. The
// toolkit's own names are registered first so that resolving a resolved name
// returns it unchanged.
func buildTable(mappings []ClassMapping, tk core.Toolkit) map[string]string {
	table := make(map[string]string, len(mappings)*3)
	add := func(key, target string) {
		if key == "" || target == "" {
			return
		}
		k := strings.ToLower(key)
		if _, ok := table[k]; !ok {
			table[k] = target
		}
	}

	for _, m := range mappings {
		add(m.target(tk), m.target(tk))
	}
	for _, m := range mappings {
		add(m.Canonical, m.target(tk))
	}
	for _, m := range mappings {
		add(m.other(tk), m.target(tk))
	}
	// Swing names without the J prefix ("ComboBox" for JComboBox)
	for _, m := range mappings {
		if len(m.Swing) > 1 && m.Swing[0] == 'J' {
			add(m.Swing[1:], m.target(tk))
		}
	}
	return table
}

var defaultClassMap = NewClassMap(builtinMappings)

// DefaultClassMap returns the built-in widget taxonomy.
func DefaultClassMap() *ClassMap {
	return defaultClassMap
}

// Resolve returns the class name used by tk for name.
func (m *ClassMap) Resolve(tk core.Toolkit, name string) string {
	if name == "" {
		return name
	}
	if target, ok := m.tables[tk][strings.ToLower(name)]; ok {
		return target
	}
	return name
}

// Canonical returns the toolkit-neutral name for a class, or name itself
// when unknown.
func (m *ClassMap) Canonical(name string) string {
	lower := strings.ToLower(name)
	for _, cm := range m.mappings {
		if strings.ToLower(cm.Canonical) == lower {
			return cm.Canonical
		}
	}
	for _, cm := range m.mappings {
		if strings.ToLower(cm.Swing) == lower || strings.ToLower(cm.SWT) == lower {
			return cm.Canonical
		}
	}
	return name
}

// Mappings returns a copy of the mapping rows.
func (m *ClassMap) Mappings() []ClassMapping {
	out := make([]ClassMapping, len(m.mappings))
	copy(out, m.mappings)
	return out
}

// classMapFile is the on-disk class map format.
type classMapFile struct {
	// Inherit appends the built-in mappings after the file's own rows.
	Inherit  bool           `yaml:"inherit"`
	Mappings []ClassMapping `yaml:"mappings"`
}

// ParseClassMap parses a YAML class map.
func ParseClassMap(data []byte) (*ClassMap, error) {
	var f classMapFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse class map: %w", err)
	}

	for i, m := range f.Mappings {
		if m.Canonical == "" {
			return nil, fmt.Errorf("class map entry %d: canonical name is required", i)
		}
		if m.Swing == "" && m.SWT == "" {
			return nil, fmt.Errorf("class map entry %d (%s): at least one of swing or swt is required", i, m.Canonical)
		}
	}

	mappings := f.Mappings
	if f.Inherit {
		mappings = append(mappings, builtinMappings...)
	}
	return NewClassMap(mappings), nil
}

// LoadClassMap reads a YAML class map from path.
func LoadClassMap(path string) (*ClassMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class map: %w", err)
	}
	return ParseClassMap(data)
}
