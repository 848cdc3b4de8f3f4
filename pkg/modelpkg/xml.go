package modelpkg

import "encoding/xml"

// xmlModel mirrors the <model> element grammar (spec §6.2, authoritative
// subset): a model definition carries its own quorum thresholds and
// spacing default, and owns a flat list of <gene> children.
type xmlModel struct {
	XMLName xml.Name `xml:"model"`

	InterGeneMaxSpace         int    `xml:"inter_gene_max_space,attr"`
	MinMandatoryGenesRequired int    `xml:"min_mandatory_genes_required,attr"`
	MinGenesRequired          int    `xml:"min_genes_required,attr"`
	MaxNbGenes                int    `xml:"max_nb_genes,attr"`
	MultiLoci                 bool   `xml:"multi_loci,attr"`
	Vers                      string `xml:"vers,attr"`

	Genes []xmlGene `xml:"gene"`
}

type xmlGene struct {
	Name              string  `xml:"name,attr"`
	Presence          string  `xml:"presence,attr"`
	Loner             bool    `xml:"loner,attr"`
	MultiModel        bool    `xml:"multi_model,attr"`
	MultiSystem       bool    `xml:"multi_system,attr"`
	InterGeneMaxSpace *int    `xml:"inter_gene_max_space,attr"`
	Exchangeables     *xmlExchangeables `xml:"exchangeables"`
}

type xmlExchangeables struct {
	Genes []xmlGeneRef `xml:"gene"`
}

type xmlGeneRef struct {
	Name string `xml:"name,attr"`
}

// decodeModelXML unmarshals the contents of one definitions/*.xml file.
func decodeModelXML(data []byte) (*xmlModel, error) {
	var m xmlModel
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
